package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXPathLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Me gusta", "'Me gusta'"},
		{"Don't", `"Don't"`},
		{`it's "x"`, `concat('it', "'", 's "x"')`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, xpathLiteral(tt.in))
		})
	}
}

func TestClassifyRodErrors(t *testing.T) {
	el := &rod.Element{Object: &proto.RuntimeRemoteObject{Description: "div.like"}}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"object gone", &rod.ObjectNotFoundError{RuntimeRemoteObject: &proto.RuntimeRemoteObject{}}, ErrStale},
		{"not interactable", &rod.NotInteractableError{}, ErrNotInteractable},
		{"invisible shape", &rod.InvisibleShapeError{Element: el}, ErrNotInteractable},
		{"covered", &rod.CoveredError{Element: el}, ErrNotInteractable},
		{"pointer events none", &rod.NoPointerEventsError{Element: el}, ErrNotInteractable},
		{"wrapped", fmt.Errorf("click: %w", &rod.CoveredError{Element: el}), ErrNotInteractable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			require.Error(t, got)
			assert.ErrorIs(t, got, tt.want)
			assert.Contains(t, got.Error(), tt.err.Error())
		})
	}
}

func TestClassifyPassesThroughUnknownErrors(t *testing.T) {
	boom := errors.New("boom")
	assert.Same(t, boom, classify(boom))
	assert.NoError(t, classify(nil))
}

type stubElement struct{ Element }

func TestPollReturnsAsSoonAsFound(t *testing.T) {
	calls := 0
	found, err := poll(context.Background(), time.Second, func() ([]Element, error) {
		calls++
		if calls < 2 {
			return nil, nil
		}
		return []Element{stubElement{}}, nil
	})

	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Equal(t, 2, calls)
}

func TestPollGivesUpAfterTimeout(t *testing.T) {
	boom := errors.New("query failed")
	found, err := poll(context.Background(), 0, func() ([]Element, error) {
		return nil, boom
	})

	assert.Empty(t, found)
	assert.ErrorIs(t, err, boom)
}

func TestPollHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := poll(ctx, time.Minute, func() ([]Element, error) { return nil, nil })
	assert.ErrorIs(t, err, context.Canceled)
}
