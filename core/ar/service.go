package ar

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/fieldpro/core"
	"github.com/trezcool/fieldpro/core/user"
)

var (
	// errors
	ErrNotFound             = errors.New("ar asset not found")
	ErrSceneNotFound        = errors.New("ar scene not found")
	ErrUnsupportedExtension = errors.New("unsupported file type")
	ErrNotAnImage           = errors.New("asset is not an image")
)

type (
	Repository interface {
		CreateAsset(ctx context.Context, a Asset) (Asset, error)
		GetAsset(ctx context.Context, id string) (Asset, error)
		QueryAssets(ctx context.Context, filter QueryFilter) ([]Asset, error)
		DeleteAsset(ctx context.Context, id string) error

		CreateScene(ctx context.Context, s Scene) (Scene, error)
		GetScene(ctx context.Context, id string) (Scene, error)
		QueryScenes(ctx context.Context, filter QueryFilter) ([]Scene, error)
		DeleteScene(ctx context.Context, id string) error
	}

	Service interface {
		// Upload stores an image or 3D model for the business of actor.
		Upload(ctx context.Context, actor user.User, filename string, r io.Reader) (Asset, error)
		// RemoveBackground stores a transparent PNG copy of an image asset.
		RemoveBackground(ctx context.Context, actor user.User, id string) (Asset, error)
		QueryAssets(ctx context.Context, actor user.User, filter QueryFilter) ([]Asset, error)
		GetAsset(ctx context.Context, actor user.User, id string) (Asset, error)
		OpenAsset(ctx context.Context, actor user.User, id string) (Asset, io.ReadCloser, error)
		DeleteAsset(ctx context.Context, actor user.User, id string) error

		CreateScene(ctx context.Context, actor user.User, ns NewScene) (Scene, error)
		QueryScenes(ctx context.Context, actor user.User) ([]Scene, error)
		DeleteScene(ctx context.Context, actor user.User, id string) error
	}

	service struct {
		repo Repository
		dir  string
	}
)

var _ Service = (*service)(nil)

// NewService stores uploaded files under `dir`.
func NewService(repo Repository, dir string) Service {
	return &service{repo: repo, dir: dir}
}

func canAccess(actor user.User, businessID string) bool {
	return actor.IsAdmin() || businessID == actor.BusinessID
}

func scope(actor user.User, filter *QueryFilter) {
	filter.Scoped = !actor.IsAdmin()
	filter.BusinessID = actor.BusinessID
}

func (svc *service) Upload(ctx context.Context, actor user.User, filename string, r io.Reader) (Asset, error) {
	filename = filepath.Base(core.CleanString(filename))
	kind := KindOf(filename)
	if kind == "" {
		return Asset{}, core.NewValidationError(ErrUnsupportedExtension,
			core.FieldError{Field: "file", Error: ErrUnsupportedExtension.Error()})
	}

	ext := strings.ToLower(filepath.Ext(filename))
	a := Asset{
		ID:          core.NewID(),
		BusinessID:  actor.BusinessID,
		Name:        filename,
		Kind:        kind,
		ContentType: mime.TypeByExtension(ext),
		CreatedAt:   core.Now(),
	}
	if a.ContentType == "" {
		a.ContentType = "application/octet-stream"
	}
	a.Path = assetPath(a.BusinessID, a.ID+ext)

	size, err := svc.writeFile(a.Path, r)
	if err != nil {
		return Asset{}, err
	}
	a.Size = size

	created, err := svc.repo.CreateAsset(ctx, a)
	if err != nil {
		_ = os.Remove(filepath.Join(svc.dir, a.Path))
		return Asset{}, err
	}
	return created, nil
}

func assetPath(businessID, name string) string {
	if businessID == "" {
		businessID = "shared"
	}
	return filepath.Join(businessID, name)
}

func (svc *service) writeFile(relPath string, r io.Reader) (int64, error) {
	fp := filepath.Join(svc.dir, relPath)
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return 0, errors.Wrap(err, "creating upload dir")
	}
	f, err := os.Create(fp)
	if err != nil {
		return 0, errors.Wrap(err, "creating file")
	}
	size, err := io.Copy(f, r)
	if cErr := f.Close(); err == nil {
		err = cErr
	}
	if err != nil {
		_ = os.Remove(fp)
		return 0, errors.Wrap(err, "writing file")
	}
	return size, nil
}

func (svc *service) RemoveBackground(ctx context.Context, actor user.User, id string) (Asset, error) {
	src, rc, err := svc.OpenAsset(ctx, actor, id)
	if err != nil {
		return Asset{}, err
	}
	defer rc.Close()
	if src.Kind != KindImage {
		return Asset{}, core.NewValidationError(ErrNotAnImage)
	}

	var buf bytes.Buffer
	if err = RemoveBackgroundPNG(rc, &buf); err != nil {
		return Asset{}, core.NewValidationError(err)
	}

	name := strings.TrimSuffix(src.Name, filepath.Ext(src.Name)) + "-transparent.png"
	cutout := Asset{
		ID:          core.NewID(),
		BusinessID:  src.BusinessID,
		Name:        name,
		Kind:        KindImage,
		ContentType: http.DetectContentType(buf.Bytes()),
		CreatedAt:   core.Now(),
	}
	cutout.Path = assetPath(cutout.BusinessID, cutout.ID+".png")
	if cutout.Size, err = svc.writeFile(cutout.Path, &buf); err != nil {
		return Asset{}, err
	}
	return svc.repo.CreateAsset(ctx, cutout)
}

func (svc *service) QueryAssets(ctx context.Context, actor user.User, filter QueryFilter) ([]Asset, error) {
	scope(actor, &filter)
	return svc.repo.QueryAssets(ctx, filter)
}

func (svc *service) GetAsset(ctx context.Context, actor user.User, id string) (Asset, error) {
	a, err := svc.repo.GetAsset(ctx, id)
	if err != nil {
		return Asset{}, err
	}
	if !canAccess(actor, a.BusinessID) {
		return Asset{}, ErrNotFound
	}
	return a, nil
}

func (svc *service) OpenAsset(ctx context.Context, actor user.User, id string) (Asset, io.ReadCloser, error) {
	a, err := svc.GetAsset(ctx, actor, id)
	if err != nil {
		return Asset{}, nil, err
	}
	f, err := os.Open(filepath.Join(svc.dir, a.Path))
	if err != nil {
		if os.IsNotExist(err) {
			return Asset{}, nil, ErrNotFound
		}
		return Asset{}, nil, errors.Wrap(err, "opening asset file")
	}
	return a, f, nil
}

func (svc *service) DeleteAsset(ctx context.Context, actor user.User, id string) error {
	a, err := svc.GetAsset(ctx, actor, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteAsset(ctx, id); err != nil {
		return err
	}
	if err = os.Remove(filepath.Join(svc.dir, a.Path)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing asset file")
	}
	return nil
}

func (svc *service) CreateScene(ctx context.Context, actor user.User, ns NewScene) (Scene, error) {
	a, err := svc.GetAsset(ctx, actor, ns.AssetID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Scene{}, core.NewFieldError("asset_id", ErrNotFound.Error())
		}
		return Scene{}, err
	}
	s := Scene{
		ID:         core.NewID(),
		BusinessID: a.BusinessID,
		Name:       ns.Name,
		AssetID:    a.ID,
		Shape:      ns.Shape,
		Width:      ns.Width,
		Height:     ns.Height,
		Depth:      ns.Depth,
		Radius:     ns.Radius,
		Theta:      ns.Theta,
		CreatedAt:  core.Now(),
	}
	return svc.repo.CreateScene(ctx, s)
}

func (svc *service) QueryScenes(ctx context.Context, actor user.User) ([]Scene, error) {
	var filter QueryFilter
	scope(actor, &filter)
	return svc.repo.QueryScenes(ctx, filter)
}

func (svc *service) DeleteScene(ctx context.Context, actor user.User, id string) error {
	s, err := svc.repo.GetScene(ctx, id)
	if err != nil {
		return err
	}
	if !canAccess(actor, s.BusinessID) {
		return ErrSceneNotFound
	}
	return svc.repo.DeleteScene(ctx, id)
}
