package echoapi

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/fieldpro/core/ar"
)

// squarePNG is a white 16x16 picture with a red square in its middle.
func squarePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			c := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			if x >= 4 && x < 12 && y >= 4 && y < 12 {
				c = color.NRGBA{R: 200, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newUploadRequest(t *testing.T, path, token, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(uploadField, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := newAuthRequest(http.MethodPost, path, token, body.Bytes())
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return req
}

func Test_arApi_assets(t *testing.T) {
	ta := newTestApp(t)
	acme := ta.tenant(t, "Acme Blinds", "acme.test")
	other := ta.tenant(t, "Shady Shutters", "shady.test")
	token := ta.token(t, acme.employee)
	pic := squarePNG(t)

	t.Run("unsupported file", func(t *testing.T) {
		rec := ta.do(newUploadRequest(t, "/v1/ar/assets", token, "virus.exe", []byte("MZ")))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("missing file", func(t *testing.T) {
		rec := ta.do(newAuthRequest(http.MethodPost, "/v1/ar/assets", token))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	rec := ta.do(newUploadRequest(t, "/v1/ar/assets", token, "window.png", pic))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var asset ar.Asset
	decode(t, rec, &asset)
	assert.Equal(t, ar.KindImage, asset.Kind)
	assert.Equal(t, acme.biz.ID, asset.BusinessID)
	assert.Equal(t, int64(len(pic)), asset.Size)

	t.Run("download", func(t *testing.T) {
		rec := ta.do(newAuthRequest(http.MethodGet, "/v1/ar/assets/"+asset.ID+"/file", token))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
		assert.Equal(t, pic, rec.Body.Bytes())
	})

	t.Run("other businesses cannot see it", func(t *testing.T) {
		rec := ta.do(newAuthRequest(http.MethodGet, "/v1/ar/assets/"+asset.ID, ta.token(t, other.owner)))
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = ta.do(newAuthRequest(http.MethodDelete, "/v1/ar/assets/"+asset.ID, ta.token(t, other.owner)))
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = ta.do(newAuthRequest(http.MethodGet, "/v1/ar/assets", ta.token(t, other.owner)))
		require.Equal(t, http.StatusOK, rec.Code)
		var assets []ar.Asset
		decode(t, rec, &assets)
		assert.Empty(t, assets)
	})

	t.Run("remove background", func(t *testing.T) {
		rec := ta.do(newAuthRequest(http.MethodPost, "/v1/ar/assets/"+asset.ID+"/remove-background", token))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var cutout ar.Asset
		decode(t, rec, &cutout)
		assert.Equal(t, "window-transparent.png", cutout.Name)

		rec = ta.do(newAuthRequest(http.MethodGet, "/v1/ar/assets/"+cutout.ID+"/file", token))
		require.Equal(t, http.StatusOK, rec.Code)
		img, err := png.Decode(rec.Body)
		require.NoError(t, err)
		_, _, _, a := img.At(0, 0).RGBA()
		assert.Zero(t, a, "background should be transparent")
		_, _, _, a = img.At(8, 8).RGBA()
		assert.NotZero(t, a, "subject should be kept")
	})

	t.Run("upload and remove background at once", func(t *testing.T) {
		rec := ta.do(newUploadRequest(t, "/v1/ar/remove-background", token, "door.png", pic))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = ta.do(newAuthRequest(http.MethodGet, "/v1/ar/assets?kind=image", token))
		require.Equal(t, http.StatusOK, rec.Code)
		var assets []ar.Asset
		decode(t, rec, &assets)
		assert.Len(t, assets, 4)
	})

	t.Run("employees delete their business assets", func(t *testing.T) {
		rec := ta.do(newAuthRequest(http.MethodDelete, "/v1/ar/assets/"+asset.ID, token))
		require.Equal(t, http.StatusNoContent, rec.Code)
		rec = ta.do(newAuthRequest(http.MethodGet, "/v1/ar/assets/"+asset.ID+"/file", token))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_arApi_scenes(t *testing.T) {
	ta := newTestApp(t)
	acme := ta.tenant(t, "Acme Blinds", "acme.test")
	token := ta.token(t, acme.owner)

	rec := ta.do(newUploadRequest(t, "/v1/ar/assets", token, "blind.png", squarePNG(t)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var asset ar.Asset
	decode(t, rec, &asset)

	ta.run(t, []httpTest{
		{
			name:     "unknown shape",
			method:   http.MethodPost,
			path:     "/v1/ar/scenes",
			body:     marshallObj(t, ar.NewScene{Name: "Lounge", AssetID: asset.ID, Shape: "sphere"}),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"shape": "invalid choice"}),
		},
		{
			name:     "unknown asset",
			method:   http.MethodPost,
			path:     "/v1/ar/scenes",
			body:     marshallObj(t, ar.NewScene{Name: "Lounge", AssetID: "nope", Shape: "plane"}),
			token:    token,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown scene",
			method:   http.MethodDelete,
			path:     "/v1/ar/scenes/nope",
			token:    token,
			wantCode: http.StatusNotFound,
		},
	})

	rec = ta.do(newAuthRequest(http.MethodPost, "/v1/ar/scenes", token,
		marshallObj(t, ar.NewScene{Name: "Lounge", AssetID: asset.ID, Shape: "plane", Width: 1.2, Height: 1.5})))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var scene ar.Scene
	decode(t, rec, &scene)
	assert.Equal(t, asset.ID, scene.AssetID)

	rec = ta.do(newAuthRequest(http.MethodGet, "/v1/ar/scenes", ta.token(t, acme.employee)))
	require.Equal(t, http.StatusOK, rec.Code)
	var scenes []ar.Scene
	decode(t, rec, &scenes)
	require.Len(t, scenes, 1)

	rec = ta.do(newAuthRequest(http.MethodDelete, "/v1/ar/scenes/"+scene.ID, token))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
