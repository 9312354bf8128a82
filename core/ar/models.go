package ar

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/fieldpro/core"
)

// Asset kinds
const (
	KindImage = "image"
	KindModel = "model"
)

// Scene shapes
const (
	ShapePlane    = "plane"
	ShapeBox      = "box"
	ShapeCylinder = "cylinder"
)

// shape defaults, in meters and degrees
const (
	defaultWidth  = 1.0
	defaultHeight = 0.6
	defaultDepth  = 0.2
	defaultRadius = 0.7
	defaultTheta  = 60.0
)

var extKinds = map[string]string{
	".png":  KindImage,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".gif":  KindImage,
	".webp": KindImage,
	".bmp":  KindImage,
	".gltf": KindModel,
	".glb":  KindModel,
	".fbx":  KindModel,
	".max":  KindModel,
}

// KindOf returns the asset kind of filename, or "" when its extension is not accepted.
func KindOf(filename string) string {
	return extKinds[strings.ToLower(filepath.Ext(filename))]
}

type Asset struct {
	ID          string    `json:"id"`
	BusinessID  string    `json:"business_id"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Path        string    `json:"path"` // relative to the upload dir
	CreatedAt   time.Time `json:"created_at"` // UTC
}

type Scene struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	Name       string    `json:"name"`
	AssetID    string    `json:"asset_id"`
	Shape      string    `json:"shape"`
	Width      float64   `json:"width"`
	Height     float64   `json:"height"`
	Depth      float64   `json:"depth,omitempty"`
	Radius     float64   `json:"radius,omitempty"`
	Theta      float64   `json:"theta,omitempty"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

type NewScene struct {
	Name    string  `json:"name" validate:"required"`
	AssetID string  `json:"asset_id" validate:"required"`
	Shape   string  `json:"shape" validate:"required,oneof=plane box cylinder"`
	Width   float64 `json:"width" validate:"gte=0"`
	Height  float64 `json:"height" validate:"gte=0"`
	Depth   float64 `json:"depth" validate:"gte=0"`
	Radius  float64 `json:"radius" validate:"gte=0"`
	Theta   float64 `json:"theta" validate:"gte=0,lte=360"`
}

func (ns *NewScene) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.AssetID = core.CleanString(ns.AssetID)
	ns.Shape = core.CleanString(ns.Shape, true /* lower */)
	if ns.Shape == "" {
		ns.Shape = ShapePlane
	}
	ns.applyDefaults()
	return validate.Struct(ns)
}

// applyDefaults fills in the unset dimensions of the shape; dimensions the shape has no use for are cleared.
func (ns *NewScene) applyDefaults() {
	if ns.Width == 0 {
		ns.Width = defaultWidth
	}
	if ns.Height == 0 {
		ns.Height = defaultHeight
	}
	switch ns.Shape {
	case ShapeBox:
		if ns.Depth == 0 {
			ns.Depth = defaultDepth
		}
		ns.Radius, ns.Theta = 0, 0
	case ShapeCylinder:
		if ns.Radius == 0 {
			ns.Radius = defaultRadius
		}
		if ns.Theta == 0 {
			ns.Theta = defaultTheta
		}
		ns.Depth = 0
	default:
		ns.Depth, ns.Radius, ns.Theta = 0, 0, 0
	}
}

type QueryFilter struct {
	// when Scoped, only the assets of BusinessID match; "" being the shared assets.
	Scoped     bool   `query:"-"`
	BusinessID string `query:"-"`
	Kind       string `query:"kind"`
}

func (qf QueryFilter) MatchAsset(a Asset) bool {
	if qf.Scoped && a.BusinessID != qf.BusinessID {
		return false
	}
	return qf.Kind == "" || a.Kind == qf.Kind
}

func (qf QueryFilter) MatchScene(s Scene) bool {
	return !qf.Scoped || s.BusinessID == qf.BusinessID
}
