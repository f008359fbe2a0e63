package source

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayDriver_DrivesGmailDOM(t *testing.T) {
	d := NewReplayDriver([]string{
		filepath.Join("testdata", "gmail_page1.html"),
		filepath.Join("testdata", "gmail_page2.html"),
	})
	a := NewGmailDOM(d, DOMOptions{SettleDelay: time.Millisecond})
	ctx := context.Background()

	p1, err := a.ListCandidates(ctx, "", 0)
	require.NoError(t, err)
	require.NotEmpty(t, p1.Next)

	p2, err := a.ListCandidates(ctx, p1.Next, 0)
	require.NoError(t, err)
	assert.Empty(t, p2.Next)

	assert.Error(t, d.Click(ctx, "div"))
}

func TestReplayDriver_Errors(t *testing.T) {
	_, err := NewReplayDriver(nil).Snapshot(context.Background())
	assert.Error(t, err)

	_, err = NewReplayDriver([]string{"testdata/missing.html"}).Snapshot(context.Background())
	assert.Error(t, err)
}
