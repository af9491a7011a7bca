package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aukilabs/dagaz/models"
	"github.com/aukilabs/dagaz/modules/dagaz"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func newTestScene(t *testing.T) (*models.Scene, *models.Object, *models.Object) {
	scene := models.NewScene(models.SceneConfig{
		Name:          t.Name(),
		CellSize:      8,
		FrameDuration: time.Millisecond * 10,
	})
	t.Cleanup(scene.Close)

	a := scene.Spawn(dagaz.Vec3{0, 0, -10}, dagaz.Vec3{}, dagaz.Vec3{1, 1, 1}, 1)
	b := scene.Spawn(dagaz.Vec3{20, 0, 0}, dagaz.Vec3{}, dagaz.Vec3{1, 1, 1}, 2)
	return scene, a, b
}

func postJSON(t *testing.T, h http.HandlerFunc, body string) (*httptest.ResponseRecorder, QueryResponse) {
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h(w, req)

	var res QueryResponse
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	}
	return w, res
}

func objectIDs(res QueryResponse) []string {
	ids := make([]string, len(res.Objects))
	for i, o := range res.Objects {
		ids[i] = o.ID
	}
	return ids
}

func TestQueryHandlerHandleBox(t *testing.T) {
	scene, a, b := newTestScene(t)
	h := QueryHandler{Scene: scene}

	_, err := scene.SetTags(a.ID, "static")
	require.NoError(t, err)

	tests := []struct {
		scenario string
		body     string
		code     int
		expected []string
	}{
		{
			scenario: "box around first object",
			body:     `{"box":{"min":[-2,-2,-12],"max":[2,2,-8]}}`,
			code:     http.StatusOK,
			expected: []string{a.ID.String()},
		},
		{
			scenario: "box around both objects",
			body:     `{"box":{"min":[-30,-30,-30],"max":[30,30,30]}}`,
			code:     http.StatusOK,
			expected: []string{a.ID.String(), b.ID.String()},
		},
		{
			scenario: "category filter",
			body:     `{"box":{"min":[-30,-30,-30],"max":[30,30,30]},"categories":2}`,
			code:     http.StatusOK,
			expected: []string{b.ID.String()},
		},
		{
			scenario: "include tags",
			body:     `{"box":{"min":[-30,-30,-30],"max":[30,30,30]},"include_tags":["static"]}`,
			code:     http.StatusOK,
			expected: []string{a.ID.String()},
		},
		{
			scenario: "exclude tags",
			body:     `{"box":{"min":[-30,-30,-30],"max":[30,30,30]},"exclude_tags":["static"]}`,
			code:     http.StatusOK,
			expected: []string{b.ID.String()},
		},
		{
			scenario: "unknown include tag",
			body:     `{"box":{"min":[-30,-30,-30],"max":[30,30,30]},"include_tags":["moving"]}`,
			code:     http.StatusOK,
			expected: []string{},
		},
		{
			scenario: "empty region",
			body:     `{"box":{"min":[100,100,100],"max":[110,110,110]}}`,
			code:     http.StatusOK,
			expected: []string{},
		},
		{
			scenario: "inverted box",
			body:     `{"box":{"min":[1,1,1],"max":[0,0,0]}}`,
			code:     http.StatusBadRequest,
		},
		{
			scenario: "invalid json",
			body:     `{"box":`,
			code:     http.StatusBadRequest,
		},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			w, res := postJSON(t, h.HandleBox, test.body)
			require.Equal(t, test.code, w.Code)
			if test.code == http.StatusOK {
				require.ElementsMatch(t, test.expected, objectIDs(res))
			}
		})
	}
}

func TestQueryHandlerHandleSphere(t *testing.T) {
	scene, a, _ := newTestScene(t)
	h := QueryHandler{Scene: scene}

	w, res := postJSON(t, h.HandleSphere, `{"center":[0,0,-7],"radius":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{a.ID.String()}, objectIDs(res))
	require.Equal(t, 1, res.Stats.ObjectsPassed)

	w, _ = postJSON(t, h.HandleSphere, `{"center":[0,0,0],"radius":-1}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryHandlerHandleFrustum(t *testing.T) {
	scene, a, _ := newTestScene(t)
	h := QueryHandler{Scene: scene}

	camera := `{"eye":[0,0,0],"target":[0,0,-1],"up":[0,1,0],"fov":90,"aspect":1,"near":1,"far":100}`
	w, res := postJSON(t, h.HandleFrustum, `{"camera":`+camera+`}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{a.ID.String()}, objectIDs(res))

	v, _ := scene.ObjectView(a.ID)
	require.Equal(t, "invisible", v.Visibility)

	f := models.Camera{
		Eye:    dagaz.Vec3{0, 0, 0},
		Target: dagaz.Vec3{0, 0, -1},
		Up:     dagaz.Vec3{0, 1, 0},
		FOV:    90,
		Aspect: 1,
		Near:   1,
		Far:    100,
	}.Frustum()
	planes, err := json.Marshal(FrustumQueryRequest{Planes: f[:]})
	require.NoError(t, err)

	w, res = postJSON(t, h.HandleFrustum, string(planes))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{a.ID.String()}, objectIDs(res))

	tests := []struct {
		scenario string
		body     string
	}{
		{
			scenario: "nothing",
			body:     `{}`,
		},
		{
			scenario: "wrong plane count",
			body:     `{"planes":[{"normal":[1,0,0],"d":0}]}`,
		},
		{
			scenario: "planes and camera",
			body:     `{"camera":` + camera + `,"planes":[{"normal":[1,0,0],"d":0}]}`,
		},
		{
			scenario: "invalid camera",
			body:     `{"camera":{"eye":[0,0,0],"target":[0,0,0],"up":[0,1,0],"fov":90,"aspect":1,"near":1,"far":100}}`,
		},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			w, _ := postJSON(t, h.HandleFrustum, test.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestQueryHandlerMaxResults(t *testing.T) {
	scene, _, _ := newTestScene(t)
	h := QueryHandler{
		Scene:      scene,
		MaxResults: 1,
	}

	w, res := postJSON(t, h.HandleBox, `{"box":{"min":[-30,-30,-30],"max":[30,30,30]}}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, res.Objects, 1)
	require.True(t, res.Truncated)
	require.Equal(t, 2, res.Stats.ObjectsPassed)
}
