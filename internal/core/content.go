package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SectionKind identifies one block of the public website.
type SectionKind string

const (
	SectionHero         SectionKind = "hero"
	SectionAbout        SectionKind = "about"
	SectionProducts     SectionKind = "products"
	SectionTestimonials SectionKind = "testimonials"
	SectionContact      SectionKind = "contact"
)

// SectionKinds lists every known kind in display order.
var SectionKinds = []SectionKind{SectionHero, SectionAbout, SectionProducts, SectionTestimonials, SectionContact}

var ErrUnknownSection = errors.New("unknown content section")

// Section is implemented by every website content block.
type Section interface {
	Kind() SectionKind
	Validate() error
}

type (
	HeroSection struct {
		Title    string `json:"title"`
		Subtitle string `json:"subtitle"`
		ImageURL string `json:"image_url"`
		CTAText  string `json:"cta_text"`
	}

	AboutSection struct {
		Heading    string   `json:"heading"`
		Body       string   `json:"body"`
		Highlights []string `json:"highlights"`
	}

	Product struct {
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Price       float64 `json:"price"`
		Unit        string  `json:"unit"`
		ImageURL    string  `json:"image_url"`
	}

	ProductsSection struct {
		Heading  string    `json:"heading"`
		Products []Product `json:"products"`
	}

	Testimonial struct {
		Author string `json:"author"`
		Quote  string `json:"quote"`
	}

	TestimonialsSection struct {
		Heading string        `json:"heading"`
		Items   []Testimonial `json:"items"`
	}

	ContactSection struct {
		Phone    string `json:"phone"`
		WhatsApp string `json:"whatsapp"`
		Email    string `json:"email"`
		Address  string `json:"address"`
		Hours    string `json:"hours"`
	}
)

func (HeroSection) Kind() SectionKind         { return SectionHero }
func (AboutSection) Kind() SectionKind        { return SectionAbout }
func (ProductsSection) Kind() SectionKind     { return SectionProducts }
func (TestimonialsSection) Kind() SectionKind { return SectionTestimonials }
func (ContactSection) Kind() SectionKind      { return SectionContact }

func (s HeroSection) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return errors.New("hero title is required")
	}
	return nil
}

func (s AboutSection) Validate() error {
	if strings.TrimSpace(s.Heading) == "" {
		return errors.New("about heading is required")
	}
	return nil
}

func (s ProductsSection) Validate() error {
	for i, p := range s.Products {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("product %d: name is required", i+1)
		}
		if p.Price < 0 {
			return fmt.Errorf("product %d: %w", i+1, ErrInvalidPrice)
		}
	}
	return nil
}

func (s TestimonialsSection) Validate() error {
	for i, t := range s.Items {
		if strings.TrimSpace(t.Quote) == "" {
			return fmt.Errorf("testimonial %d: quote is required", i+1)
		}
	}
	return nil
}

func (s ContactSection) Validate() error {
	if s.Phone != "" && len(digits(s.Phone)) < 10 {
		return ErrInvalidPhone
	}
	return nil
}

type sectionEnvelope struct {
	Kind SectionKind     `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// EmptySection returns the zero value for kind.
func EmptySection(kind SectionKind) (Section, error) {
	switch kind {
	case SectionHero:
		return HeroSection{}, nil
	case SectionAbout:
		return AboutSection{}, nil
	case SectionProducts:
		return ProductsSection{}, nil
	case SectionTestimonials:
		return TestimonialsSection{}, nil
	case SectionContact:
		return ContactSection{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSection, kind)
}

// EncodeSection wraps s in a {"kind","data"} envelope.
func EncodeSection(s Section) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal %s section: %w", s.Kind(), err)
	}
	return json.Marshal(sectionEnvelope{Kind: s.Kind(), Data: data})
}

// DecodeSection is the inverse of EncodeSection.
func DecodeSection(raw []byte) (Section, error) {
	var env sectionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal section envelope: %w", err)
	}
	return decodeSectionData(env.Kind, env.Data)
}

// DecodeSectionData decodes the bare payload of a section of the given kind.
func DecodeSectionData(kind SectionKind, data []byte) (Section, error) {
	return decodeSectionData(kind, data)
}

func decodeSectionData(kind SectionKind, data []byte) (Section, error) {
	var (
		s   Section
		err error
	)
	switch kind {
	case SectionHero:
		var v HeroSection
		err = json.Unmarshal(data, &v)
		s = v
	case SectionAbout:
		var v AboutSection
		err = json.Unmarshal(data, &v)
		s = v
	case SectionProducts:
		var v ProductsSection
		err = json.Unmarshal(data, &v)
		s = v
	case SectionTestimonials:
		var v TestimonialsSection
		err = json.Unmarshal(data, &v)
		s = v
	case SectionContact:
		var v ContactSection
		err = json.Unmarshal(data, &v)
		s = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSection, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s section: %w", kind, err)
	}
	return s, nil
}
