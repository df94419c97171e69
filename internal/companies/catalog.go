package companies

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/spigell/es-reviewer/internal/scorecard"
)

//go:embed profiles.yaml
var defaultProfiles []byte

// DriftTolerance is how far a weight sum may stray from 100 before it is
// reported as drift.
const DriftTolerance = 5

// ErrEmptyCatalog is returned when a catalog defines no companies.
var ErrEmptyCatalog = errors.New("company catalog is empty")

// Catalog is an immutable, ordered set of profiles.
type Catalog struct {
	profiles []*Profile
	byAlias  map[string]*Profile
	byID     map[string]*Profile
}

// Drift describes a profile whose weights do not sum to about 100.
type Drift struct {
	ID    string
	Label string
	Sum   int
}

func (d Drift) String() string {
	return fmt.Sprintf("%s (%s): weights sum to %d, expected 100", d.Label, d.ID, d.Sum)
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Load(defaultProfiles)
}

// LoadFile reads a catalog from a YAML file. An empty path returns the
// built-in catalog.
func LoadFile(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading company catalog %q: %w", path, err)
	}

	return Load(data)
}

// Load decodes and validates a YAML catalog with a top-level "companies" list.
func Load(data []byte) (*Catalog, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("parsing company catalog: %w", err)
	}

	var profiles []*Profile
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &profiles,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(v.Get("companies")); err != nil {
		return nil, fmt.Errorf("decoding company catalog: %w", err)
	}

	return New(profiles)
}

// New validates the profiles and builds the alias index.
func New(profiles []*Profile) (*Catalog, error) {
	if len(profiles) == 0 {
		return nil, ErrEmptyCatalog
	}

	validate := newValidator()
	c := &Catalog{
		byAlias: make(map[string]*Profile),
		byID:    make(map[string]*Profile),
	}

	for _, p := range profiles {
		if p == nil {
			continue
		}
		canonicalize(p)

		if err := validate.Struct(p); err != nil {
			return nil, fmt.Errorf("company %q: %w", p.ID, err)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("company %q is defined twice", p.ID)
		}
		c.byID[p.ID] = p

		for _, alias := range append([]string{p.Label}, p.Aliases...) {
			key := NormalizeName(alias)
			if key == "" {
				continue
			}
			if other, ok := c.byAlias[key]; ok && other != p {
				return nil, fmt.Errorf("alias %q of %q already belongs to %q", alias, p.ID, other.ID)
			}
			c.byAlias[key] = p
		}

		c.profiles = append(c.profiles, p)
	}

	if len(c.profiles) == 0 {
		return nil, ErrEmptyCatalog
	}

	return c, nil
}

// Profiles returns the profiles in configuration order.
func (c *Catalog) Profiles() []*Profile {
	out := make([]*Profile, len(c.profiles))
	copy(out, c.profiles)
	return out
}

// Get returns the profile with the given id.
func (c *Catalog) Get(id string) (*Profile, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Match resolves a free-text company name to a profile.
func (c *Catalog) Match(name string) (*Profile, bool) {
	key := NormalizeName(name)
	if key == "" {
		return nil, false
	}
	p, ok := c.byAlias[key]
	return p, ok
}

// Drift lists profiles whose weight sum is more than tolerance away from 100.
func (c *Catalog) Drift(tolerance int) []Drift {
	var out []Drift
	for _, p := range c.profiles {
		sum := p.TotalWeight()
		if sum < 100-tolerance || sum > 100+tolerance {
			out = append(out, Drift{ID: p.ID, Label: p.Label, Sum: sum})
		}
	}
	return out
}

// canonicalize upper-cases signal keys, which the YAML loader lower-cases.
func canonicalize(p *Profile) {
	p.ID = strings.TrimSpace(p.ID)
	p.Label = strings.TrimSpace(p.Label)

	for i := range p.FitRules {
		p.FitRules[i].Signal = scorecard.Signal(strings.ToUpper(strings.TrimSpace(string(p.FitRules[i].Signal))))
	}
	for i := range p.Penalties {
		p.Penalties[i].Signal = scorecard.Signal(strings.ToUpper(strings.TrimSpace(string(p.Penalties[i].Signal))))
	}
	for i := range p.FitCombos {
		require := make(map[scorecard.Signal]int, len(p.FitCombos[i].Require))
		for sig, v := range p.FitCombos[i].Require {
			require[scorecard.Signal(strings.ToUpper(strings.TrimSpace(string(sig))))] = v
		}
		p.FitCombos[i].Require = require
	}
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	_ = validate.RegisterValidation("signal", func(fl validator.FieldLevel) bool {
		_, ok := scorecard.ParseSignal(fl.Field().String())
		return ok
	})
	_ = validate.RegisterValidation("confidence", func(fl validator.FieldLevel) bool {
		c, ok := scorecard.ParseConfidence(fl.Field().String())
		return ok && c != scorecard.ConfidenceNA
	})

	return validate
}
