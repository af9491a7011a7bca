package smoketest

import (
	"bytes"
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aukilabs/dagaz/models"
	"github.com/stretchr/testify/require"
)

func newTestScene(t *testing.T, n int) *models.Scene {
	scene := models.NewScene(models.SceneConfig{
		Name:          t.Name(),
		CellSize:      10,
		WorldExtent:   50,
		FrameDuration: time.Millisecond * 5,
	})
	t.Cleanup(scene.Close)

	scene.SpawnRandom(rand.New(rand.NewSource(42)), n, 20, 6)
	return scene
}

func TestRun(t *testing.T) {
	scene := newTestScene(t, 300)

	res, err := Run(context.Background(), scene, Options{
		Samples: 64,
		Readers: 4,
		Seed:    7,
	})
	require.NoError(t, err)
	require.True(t, res.Passed())
	require.Equal(t, 64*3, res.Queries)
	require.Equal(t, 300, res.Objects)
	require.Empty(t, res.Invariants)

	for _, o := range scene.Objects() {
		v, _ := scene.ObjectView(o.ID)
		require.Equal(t, "invisible", v.Visibility)
	}
}

func TestRunWithAlwaysVisibleObjects(t *testing.T) {
	scene := newTestScene(t, 100)
	scene.SpawnAlwaysVisible(1)
	scene.SpawnAlwaysVisible(8)

	res, err := Run(context.Background(), scene, Options{
		Samples: 32,
		Readers: 2,
		Seed:    3,
	})
	require.NoError(t, err)
	require.True(t, res.Passed())
	require.Equal(t, 102, res.Objects)
}

func TestRunWhileSceneMoves(t *testing.T) {
	scene := newTestScene(t, 200)
	go scene.StartDispatchFrames()

	for i := 0; i < 3; i++ {
		res, err := Run(context.Background(), scene, Options{
			Samples: 32,
			Readers: 3,
		})
		require.NoError(t, err)
		require.True(t, res.Passed())
	}
}

func TestRunOnEmptyScene(t *testing.T) {
	scene := newTestScene(t, 0)

	res, err := Run(context.Background(), scene, Options{Samples: 8})
	require.NoError(t, err)
	require.Zero(t, res.Objects)
	require.True(t, res.Passed())
}

func TestRunCanceled(t *testing.T) {
	scene := newTestScene(t, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, scene, Options{Samples: 8})
	require.Error(t, err)
}

func TestHandleSmokeTest(t *testing.T) {
	t.Run("smoke test success", func(t *testing.T) {
		scene := newTestScene(t, 100)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		done, doneCancel := context.WithCancel(context.Background())
		ctx = context.WithValue(ctx, testCtxKeyValue, testContext{
			Context: done,
			Cancel:  doneCancel,
		})

		var res Results
		handler := HandleSmokeTest(ctx, scene, Options{
			SendResult: func(ctx context.Context, r Results) error {
				res = r
				return nil
			},
		})

		req := httptest.NewRequest(http.MethodPost, "/smoke-test", bytes.NewBufferString(`{"samples":16,"readers":2,"seed":3}`))
		w := httptest.NewRecorder()
		handler(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		<-done.Done()
		require.True(t, res.Passed())
		require.Equal(t, 16*3, res.Queries)
	})

	t.Run("smoke test bad request", func(t *testing.T) {
		scene := newTestScene(t, 1)

		handler := HandleSmokeTest(context.Background(), scene, Options{})

		req := httptest.NewRequest(http.MethodPost, "/smoke-test", bytes.NewBufferString(`{"samples":`))
		w := httptest.NewRecorder()
		handler(w, req)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}
