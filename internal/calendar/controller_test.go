package calendar

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicecal/internal/model"
	"voicecal/internal/view"
	"voicecal/internal/view/viewtest"
)

const (
	rowSel    = "div.XsRa1c"
	dialogSel = "div[role='dialog']"
)

var (
	start = time.Date(2026, 10, 14, 14, 0, 0, 0, time.Local)
	end   = time.Date(2026, 10, 14, 15, 0, 0, 0, time.Local)
	now   = time.Date(2026, 10, 14, 10, 0, 0, 0, time.Local)
)

func rows(n int) []*viewtest.Element {
	out := make([]*viewtest.Element, n)
	for i := range out {
		out[i] = &viewtest.Element{ID: fmt.Sprintf("row%d", i), Sel: rowSel}
	}
	return out
}

func fullDialog() *viewtest.Element {
	return &viewtest.Element{
		ID:  "dialog",
		Sel: dialogSel,
		Children: map[string][]*viewtest.Element{
			`[aria-label="标题"]`:        {{ID: "title", Sel: `[aria-label="标题"]`}},
			`input[aria-label="开始时间"]`: {{ID: "start", Sel: `input[aria-label="开始时间"]`}},
			`input[aria-label="结束时间"]`: {{ID: "end", Sel: `input[aria-label="结束时间"]`}},
			"button": {
				{ID: "cancel", Sel: "button", Text: "取消"},
				{ID: "save", Sel: "button", Text: "保存"},
			},
		},
	}
}

func pageWith(rowCount int, dialog *viewtest.Element) *viewtest.Page {
	nodes := map[string][]*viewtest.Element{rowSel: rows(rowCount)}
	if dialog != nil {
		nodes[dialogSel] = []*viewtest.Element{dialog}
	}
	return &viewtest.Page{Nodes: nodes}
}

func sessionFor(p *viewtest.Page) *viewtest.Session {
	return &viewtest.Session{Build: func(time.Time) *viewtest.Page { return p }}
}

func newController(t *testing.T) (*Controller, string) {
	dir := t.TempDir()
	return NewController(Options{
		HourRowSelector: rowSel,
		HourRows:        24,
		DialogSelector:  dialogSel,
		DayViewKey:      "1",
		TitleLabels:     []string{"添加标题", "活动名称", "标题", "标题（可选）"},
		StartLabels:     []string{"开始时间", "开始", "开始日期"},
		EndLabels:       []string{"结束时间", "结束", "结束日期"},
		SaveLabels:      []string{"保存"},
		ArtifactDir:     dir,
		Now:             func() time.Time { return now },
	}), dir
}

func TestCreateEvent_HappyPath(t *testing.T) {
	p := pageWith(24, fullDialog())
	s := sessionFor(p)
	c, dir := newController(t)

	out := c.CreateEvent(context.Background(), s, "写报告", start, end)

	require.NoError(t, out.Err)
	assert.True(t, out.Success)
	assert.Empty(t, out.Warnings)
	assert.Empty(t, out.ArtifactPath)
	assert.Equal(t, []string{
		"press 1",
		"scroll row14",
		"click row14 force=true",
		"wait " + dialogSel + "|visible",
		"fill title 写报告",
		"set start 14:00",
		"set end 15:00",
		"click save force=true",
		"wait " + dialogSel + "|detached",
	}, p.Actions)
	assert.True(t, p.Closed)
	assert.Equal(t, []time.Time{start}, s.Opened)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateEvent_SlotCountMismatch(t *testing.T) {
	for _, n := range []int{0, 23, 25} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			p := pageWith(n, fullDialog())
			c, _ := newController(t)

			out := c.CreateEvent(context.Background(), sessionFor(p), "写报告", start, end)

			assert.False(t, out.Success)
			assert.ErrorIs(t, out.Err, ErrSlotCount)
			assert.Empty(t, out.ArtifactPath)
			assert.Equal(t, []string{"press 1"}, p.Actions)
			assert.True(t, p.Closed)
		})
	}
}

func TestCreateEvent_HourBeyondConfiguredRows(t *testing.T) {
	p := pageWith(12, fullDialog())
	c, _ := newController(t)
	c.opts.HourRows = 12

	var out model.MutationOutcome
	require.NotPanics(t, func() {
		out = c.CreateEvent(context.Background(), sessionFor(p), "写报告", start, end)
	})

	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, ErrSlotCount)
	assert.Equal(t, []string{"press 1"}, p.Actions)
	assert.True(t, p.Closed)
}

func TestCreateEvent_DialogTimeout(t *testing.T) {
	p := pageWith(24, nil)
	c, dir := newController(t)

	out := c.CreateEvent(context.Background(), sessionFor(p), "写报告", start, end)

	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, ErrDialogTimeout)
	assert.Equal(t, filepath.Join(dir, "error_20261014_100000.png"), out.ArtifactPath)
	assert.FileExists(t, out.ArtifactPath)
	assert.True(t, p.Closed)
}

func TestCreateEvent_MissingFieldsAreTolerated(t *testing.T) {
	dialog := &viewtest.Element{
		ID:  "dialog",
		Sel: dialogSel,
		Children: map[string][]*viewtest.Element{
			`input[aria-label="开始"]`:  {{ID: "start", Sel: `input[aria-label="开始"]`}},
			`button[aria-label="保存"]`: {{ID: "save", Sel: `button[aria-label="保存"]`}},
		},
	}
	p := pageWith(24, dialog)
	c, _ := newController(t)

	out := c.CreateEvent(context.Background(), sessionFor(p), "写报告", start, end)

	require.NoError(t, out.Err)
	assert.True(t, out.Success)
	assert.Equal(t, []string{WarnTitleMissing, WarnTimesMissing}, out.Warnings)
	assert.Empty(t, p.Values, "no field may be written when only one time field exists")
	assert.True(t, p.Did("click save force=true"))
}

func TestCreateEvent_TitleCandidateOrder(t *testing.T) {
	dialog := fullDialog()
	dialog.Children[`[aria-label="活动名称"]`] = []*viewtest.Element{{ID: "name", Sel: `[aria-label="活动名称"]`}}
	p := pageWith(24, dialog)
	c, _ := newController(t)

	out := c.CreateEvent(context.Background(), sessionFor(p), "周会", start, end)

	require.NoError(t, out.Err)
	assert.Equal(t, "周会", p.Values["name"])
	assert.NotContains(t, p.Values, "title")
}

func TestCreateEvent_SaveMissing(t *testing.T) {
	dialog := fullDialog()
	dialog.Children["button"] = []*viewtest.Element{{ID: "cancel", Sel: "button", Text: "取消"}}
	p := pageWith(24, dialog)
	c, _ := newController(t)

	out := c.CreateEvent(context.Background(), sessionFor(p), "写报告", start, end)

	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, ErrSaveControlMissing)
	assert.FileExists(t, out.ArtifactPath)
}

func TestCreateEvent_SaveConfirmation(t *testing.T) {
	key := "WaitFor:" + dialogSel + "|detached"

	t.Run("timeout is soft", func(t *testing.T) {
		p := pageWith(24, fullDialog())
		p.Errors = map[string]error{key: view.ErrTimeout}
		c, _ := newController(t)

		out := c.CreateEvent(context.Background(), sessionFor(p), "写报告", start, end)

		require.NoError(t, out.Err)
		assert.True(t, out.Success)
		assert.Equal(t, []string{WarnSaveUnconfirmed}, out.Warnings)
		assert.Empty(t, out.ArtifactPath)
	})

	t.Run("other errors fail", func(t *testing.T) {
		p := pageWith(24, fullDialog())
		p.Errors = map[string]error{key: errors.New("target closed")}
		c, _ := newController(t)

		out := c.CreateEvent(context.Background(), sessionFor(p), "写报告", start, end)

		assert.False(t, out.Success)
		assert.Error(t, out.Err)
		assert.NotEmpty(t, out.ArtifactPath)
	})
}

func TestCreateEvent_StepFailuresCaptureScreenshot(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		key  string
	}{
		{"press", "PressKey"},
		{"click row", "Click:" + rowSel},
		{"fill", "Fill:" + `[aria-label="标题"]`},
		{"set value", "SetValueAndDispatchEvents"},
		{"click save", "Click:button"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := pageWith(24, fullDialog())
			p.Errors = map[string]error{tt.key: boom}
			c, _ := newController(t)

			out := c.CreateEvent(context.Background(), sessionFor(p), "写报告", start, end)

			assert.False(t, out.Success)
			assert.ErrorIs(t, out.Err, boom)
			assert.FileExists(t, out.ArtifactPath)
			assert.True(t, p.Closed)
		})
	}
}

func TestCreateEvent_OpenFailure(t *testing.T) {
	c, _ := newController(t)
	s := &viewtest.Session{OpenErr: view.ErrTimeout}

	out := c.CreateEvent(context.Background(), s, "写报告", start, end)

	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, view.ErrTimeout)
	assert.Empty(t, out.ArtifactPath)

	out = c.CreateEvent(context.Background(), nil, "写报告", start, end)
	assert.Error(t, out.Err)
}

func TestArtifactName(t *testing.T) {
	assert.Equal(t, "error_20261014_100000.png", ArtifactName(now))
}
