// Package seed loads demo data into empty repositories.
package seed

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/fieldpro/core"
	"github.com/trezcool/fieldpro/core/business"
	"github.com/trezcool/fieldpro/core/customer"
	"github.com/trezcool/fieldpro/core/product"
	"github.com/trezcool/fieldpro/core/user"
)

type (
	Data struct {
		Businesses []Business `yaml:"businesses"`
		Users      []User     `yaml:"users"`
		Customers  []Customer `yaml:"customers"`
		Products   []Product  `yaml:"products"`
	}

	// Business is referenced by Key from the other entries.
	Business struct {
		Key           string   `yaml:"key"`
		Name          string   `yaml:"name"`
		Address       string   `yaml:"address"`
		Phone         string   `yaml:"phone"`
		Email         string   `yaml:"email"`
		Features      []string `yaml:"features"`
		Subscription  string   `yaml:"subscription"`
		VRViewEnabled bool     `yaml:"vr_view_enabled"`
		Admin         string   `yaml:"admin"` // email of the owning business user
	}

	User struct {
		Name     string `yaml:"name"`
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
		Role     string `yaml:"role"`
		Business string `yaml:"business"`
	}

	Customer struct {
		Name     string `yaml:"name"`
		Email    string `yaml:"email"`
		Phone    string `yaml:"phone"`
		Mobile   string `yaml:"mobile"`
		Address  string `yaml:"address"`
		Postcode string `yaml:"postcode"`
		Business string `yaml:"business"`
	}

	Product struct {
		Name           string            `yaml:"name"`
		Category       string            `yaml:"category"`
		Description    string            `yaml:"description"`
		Image          string            `yaml:"image"`
		Model3D        string            `yaml:"model_3d"`
		ARModel        string            `yaml:"ar_model"`
		Specifications map[string]string `yaml:"specifications"`
		Price          float64           `yaml:"price"`
	}

	// Target receives the seeded entities.
	Target struct {
		Users      user.Repository
		Businesses business.Repository
		Customers  customer.Repository
		Products   product.Repository
	}

	Result struct {
		Businesses, Users, Customers, Products int
	}
)

// Load reads seed data from a YAML file, or returns Default when path is empty.
func Load(path string) (Data, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Data{}, errors.Wrap(err, "reading seed file")
	}
	var d Data
	if err = yaml.Unmarshal(b, &d); err != nil {
		return Data{}, errors.Wrapf(err, "parsing seed file %s", path)
	}
	return d, nil
}

// Default is the demo data the local store starts with.
func Default() Data {
	return Data{
		Businesses: []Business{{
			Key:           "demo",
			Name:          "Demo Blinds Co",
			Address:       "1 High Street, London",
			Phone:         "+44 20 7946 0000",
			Email:         "info@demoblinds.example",
			Features:      []string{"ar", "calendar", "quotations"},
			Subscription:  business.SubscriptionPremium,
			VRViewEnabled: true,
			Admin:         "business@demoblinds.example",
		}},
		Users: []User{
			{Name: "Platform Admin", Email: "admin@fieldpro.example", Password: "Adm1nistrat0r!", Role: user.RoleAdmin},
			{Name: "Sarah Owner", Email: "business@demoblinds.example", Password: "Bus1nessOwner!", Role: user.RoleBusiness, Business: "demo"},
			{Name: "Tom Fitter", Email: "employee@demoblinds.example", Password: "F1tterT0m!", Role: user.RoleEmployee, Business: "demo"},
		},
		Customers: []Customer{{
			Name:     "Jane Smith",
			Email:    "jane.smith@example.com",
			Phone:    "+44 20 7946 0123",
			Address:  "22 Acacia Avenue, London",
			Postcode: "SW1A 1AA",
			Business: "demo",
		}},
		Products: []Product{
			{
				Name:           "Classic Roller Blind",
				Category:       "Roller",
				Description:    "Blackout roller blind with chain control.",
				Specifications: map[string]string{"fabric": "blackout", "control": "chain-cord"},
				Price:          89.99,
			},
			{
				Name:           "Aluminium Venetian Blind",
				Category:       "Venetian",
				Description:    "25mm slats, wand tilt.",
				Specifications: map[string]string{"slat": "25mm", "control": "wand"},
				Price:          74.5,
			},
			{
				Name:           "Vertical Blind",
				Category:       "Vertical",
				Description:    "89mm vanes for patio doors.",
				Specifications: map[string]string{"vane": "89mm"},
				Price:          119,
			},
			{
				Name:           "Roman Blind",
				Category:       "Roman",
				Description:    "Lined linen roman blind.",
				Specifications: map[string]string{"fabric": "linen", "lining": "thermal"},
				Price:          159,
			},
		},
	}
}

// Apply creates the seed entities. Users whose email already exists are skipped.
func Apply(ctx context.Context, t Target, d Data) (Result, error) {
	var res Result
	now := core.Now()
	businessIDs := make(map[string]string, len(d.Businesses))
	owners := make(map[string]string) // business key -> owner email

	for _, sb := range d.Businesses {
		b := business.Business{
			ID:            core.NewID(),
			Name:          sb.Name,
			Address:       sb.Address,
			Phone:         sb.Phone,
			Email:         core.CleanString(sb.Email, true /* lower */),
			Features:      sb.Features,
			Subscription:  sb.Subscription,
			VRViewEnabled: sb.VRViewEnabled,
			CreatedAt:     now,
		}
		if b.Features == nil {
			b.Features = []string{}
		}
		if b.Subscription == "" {
			b.Subscription = business.SubscriptionBasic
		}
		b, err := t.Businesses.CreateBusiness(ctx, b)
		if err != nil {
			return res, errors.Wrapf(err, "seeding business %s", sb.Name)
		}
		businessIDs[sb.Key] = b.ID
		if sb.Admin != "" {
			owners[sb.Key] = core.CleanString(sb.Admin, true /* lower */)
		}
		res.Businesses++
	}

	ownerIDs := make(map[string]string) // owner email -> user id
	for _, su := range d.Users {
		email := core.CleanString(su.Email, true /* lower */)
		if _, err := t.Users.GetUserByEmail(ctx, email); err == nil {
			continue
		} else if errors.Cause(err) != user.ErrNotFound {
			return res, errors.Wrapf(err, "seeding user %s", email)
		}

		usr := user.User{
			ID:            core.NewID(),
			Email:         email,
			Name:          su.Name,
			Role:          su.Role,
			BusinessID:    businessIDs[su.Business],
			Permissions:   []string{},
			IsActive:      true,
			EmailVerified: true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := usr.SetPassword(su.Password); err != nil {
			return res, errors.Wrap(err, "setting password")
		}
		if _, err := t.Users.CreateUser(ctx, usr); err != nil {
			return res, errors.Wrapf(err, "seeding user %s", email)
		}
		ownerIDs[email] = usr.ID
		res.Users++
	}

	for key, email := range owners {
		id, ok := ownerIDs[email]
		if !ok {
			continue
		}
		b, err := t.Businesses.GetBusiness(ctx, businessIDs[key])
		if err != nil {
			return res, err
		}
		b.AdminID = id
		if _, err = t.Businesses.UpdateBusiness(ctx, b); err != nil {
			return res, errors.Wrapf(err, "setting admin of business %s", b.Name)
		}
	}

	for _, sc := range d.Customers {
		c := customer.Customer{
			ID:         core.NewID(),
			Name:       sc.Name,
			Email:      core.CleanString(sc.Email, true /* lower */),
			Phone:      sc.Phone,
			Mobile:     sc.Mobile,
			Address:    sc.Address,
			Postcode:   sc.Postcode,
			BusinessID: businessIDs[sc.Business],
			CreatedAt:  now,
		}
		if _, err := t.Customers.CreateCustomer(ctx, c); err != nil {
			return res, errors.Wrapf(err, "seeding customer %s", sc.Name)
		}
		res.Customers++
	}

	for _, sp := range d.Products {
		p := product.Product{
			ID:             core.NewID(),
			Name:           sp.Name,
			Category:       sp.Category,
			Description:    sp.Description,
			Image:          sp.Image,
			Model3D:        sp.Model3D,
			ARModel:        sp.ARModel,
			Specifications: sp.Specifications,
			Price:          sp.Price,
			IsActive:       true,
			CreatedAt:      now,
		}
		if p.Specifications == nil {
			p.Specifications = map[string]string{}
		}
		if _, err := t.Products.CreateProduct(ctx, p); err != nil {
			return res, errors.Wrapf(err, "seeding product %s", sp.Name)
		}
		res.Products++
	}
	return res, nil
}
