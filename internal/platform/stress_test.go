package platform_test

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/internal/platform"
	"github.com/aretw0/notesync/pkg/adapters/local"
	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/kv"
)

// TestStress_SharedDeviceStorage runs two engines over one data directory
// while both mutate notes. Records are rewritten whole, so writes may be
// lost, but the stored collections must stay decodable and neither engine
// may deadlock.
func TestStress_SharedDeviceStorage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}

	dir := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var engines []*platform.Engine
	for i := 0; i < 2; i++ {
		e, err := platform.New(platform.WithDataDir(dir))
		require.NoError(t, err)
		require.NoError(t, e.Start(ctx))
		defer e.Stop()
		engines = append(engines, e)
	}

	var wg sync.WaitGroup
	for i, e := range engines {
		wg.Add(1)
		go func(prefix string, svc *core.Service) {
			defer wg.Done()
			for ctx.Err() == nil {
				id := fmt.Sprintf("%s-%d", prefix, rand.Intn(10))
				// errors are expected: the other engine may have removed the note
				if _, err := svc.CreateNote(context.Background(), core.NoteInput{ID: id, Title: id}); err != nil {
					_, _ = svc.TogglePin(context.Background(), id)
				}
				if rand.Intn(4) == 0 {
					_ = svc.DeleteNote(context.Background(), id)
				}
				time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
			}
		}(fmt.Sprintf("e%d", i), e.Service())
	}

	// a reader syncing the first engine throughout
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			_ = engines[0].Sync(context.Background())
			time.Sleep(10 * time.Millisecond)
		}
	}()

	wg.Wait()

	store, err := kv.NewFileStore(dir, nil)
	require.NoError(t, err)
	notes, err := local.NewRepository(local.Config{Store: store}).ListNotes(context.Background())
	require.NoError(t, err)
	require.True(t, core.Sorted(notes))
	t.Logf("survived with %d notes on disk", len(notes))
}
