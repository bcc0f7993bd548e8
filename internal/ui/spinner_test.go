package ui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpinnerQuitCancelsAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  tea.KeyMsg
	}{
		{name: "ctrl+c", key: tea.KeyMsg{Type: tea.KeyCtrlC}},
		{name: "q", key: tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}},
		{name: "esc", key: tea.KeyMsg{Type: tea.KeyEsc}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			m := newSpinnerModel("Weaving", make(chan logEntry), cancel)
			next, cmd := m.Update(tt.key)
			require.NotNil(t, cmd)

			assert.ErrorIs(t, ctx.Err(), context.Canceled)
			sm := next.(*spinnerModel)
			assert.True(t, sm.done)
			assert.EqualError(t, sm.err, "operation canceled")
			assert.Contains(t, sm.View(), "operation canceled")
		})
	}
}

func TestSpinnerActionDoneKeepsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newSpinnerModel("Weaving", make(chan logEntry), cancel)
	next, _ := m.Update(actionDoneMsg{})
	assert.NoError(t, ctx.Err())
	assert.True(t, next.(*spinnerModel).done)
	assert.NoError(t, next.(*spinnerModel).err)
}
