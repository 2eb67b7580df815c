// Package irdschema is the catalog of IRD fields: API keys, the legacy
// spreadsheet headers they replace, and how each value is normalized.
package irdschema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"irdinv/internal/apperr"
	"irdinv/internal/models"
)

type FieldDef struct {
	Key      string // ключ в JSON и заголовок Excel
	Legacy   string // старый заголовок (nombreIrd, ipAdminIrd, ...)
	Required bool
	Validate func(string) (string, error)
	Ref      func(*models.IrdSpec) *string
}

/* --- validators --- */

var reDottedQuad = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})$`)

// IsIPv4 accepts dotted-quad addresses with every octet in 0..255.
func IsIPv4(s string) bool {
	m := reDottedQuad.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	for _, oct := range m[1:] {
		n, err := strconv.Atoi(oct)
		if err != nil || n > 255 {
			return false
		}
	}
	return true
}

func normIPv4(v string) (string, error) {
	s := strings.TrimSpace(v)
	if !IsIPv4(s) {
		return "", fmt.Errorf("invalid IP: %s", s)
	}
	return s, nil
}

func normRequired(v string) (string, error) {
	s := strings.TrimSpace(v)
	if s == "" {
		return "", fmt.Errorf("must not be blank")
	}
	return s, nil
}

func pass(v string) (string, error) { return strings.TrimSpace(v), nil }

/* --- catalog --- */

var Catalog = []FieldDef{
	{Key: "name", Legacy: "nombreIrd", Required: true, Validate: normRequired, Ref: func(s *models.IrdSpec) *string { return &s.Name }},
	{Key: "adminIp", Legacy: "ipAdminIrd", Required: true, Validate: normIPv4, Ref: func(s *models.IrdSpec) *string { return &s.AdminIP }},

	{Key: "imageUrl", Legacy: "urlIrd", Validate: pass, Ref: func(s *models.IrdSpec) *string { return &s.ImageURL }},
	{Key: "brand", Legacy: "marcaIrd", Validate: pass, Ref: func(s *models.IrdSpec) *string { return &s.Brand }},
	{Key: "model", Legacy: "modelIrd", Validate: pass, Ref: func(s *models.IrdSpec) *string { return &s.Model }},
	{Key: "version", Legacy: "versionIrd", Validate: pass, Ref: func(s *models.IrdSpec) *string { return &s.Version }},
	{Key: "ua", Legacy: "uaIrd", Validate: pass, Ref: func(s *models.IrdSpec) *string { return &s.UA }},

	// тюнер
	{Key: "tid", Legacy: "tidReceptor", Validate: pass, Ref: func(s *models.IrdSpec) *string { return &s.TID }},
	{Key: "receptorType", Legacy: "typeReceptor", Validate: pass, Ref: func(s *models.IrdSpec) *string { return &s.ReceptorType }},
	{Key: "frequency", Legacy: "feqReceptor", Validate: pass, Ref: func(s *models.IrdSpec) *string { return &s.Frequency }},
	{Key: "symbolRate", Legacy: "symbolRateIrd", Validate: pass, Ref: func(s *models.IrdSpec) *string { return &s.SymbolRate }},
	{Key: "fec", Legacy: "fecReceptorIrd", Validate: pass, Ref: func(s *models.IrdSpec) *string { return &s.FEC }},
	{Key: "modulation", Legacy: "modulationReceptorIrd", Validate: pass, Ref: func(s *models.IrdSpec) *string { return &s.Modulation }},
	{Key: "rollOff", Legacy: "rellOfReceptor", Validate: pass, Ref: func(s *models.IrdSpec) *string { return &s.RollOff }},
	{Key: "nid", Legacy: "nidReceptor", Validate: pass, Ref: func(s *models.IrdSpec) *string { return &s.NID }},
	{Key: "virtualChannel", Legacy: "cvirtualReceptor", Validate: pass, Ref: func(s *models.IrdSpec) *string { return &s.VirtualChan }},
	{Key: "vct", Legacy: "vctReceptor", Validate: pass, Ref: func(s *models.IrdSpec) *string { return &s.VCT }},
	{Key: "output", Legacy: "outputReceptor", Validate: pass, Ref: func(s *models.IrdSpec) *string { return &s.Output }},
	{Key: "multicast", Legacy: "multicastReceptor", Validate: pass, Ref: func(s *models.IrdSpec) *string { return &s.Multicast }},
	{Key: "videoMulticastIp", Legacy: "ipVideoMulticast", Validate: pass, Ref: func(s *models.IrdSpec) *string { return &s.VideoMcastIP }},

	// размещение и коммутация
	{Key: "locationRow", Validate: pass, Ref: func(s *models.IrdSpec) *string { return &s.LocationRow }},
	{Key: "locationCol", Validate: pass, Ref: func(s *models.IrdSpec) *string { return &s.LocationCol }},
	{Key: "switchAdmin", Legacy: "swAdmin", Validate: pass, Ref: func(s *models.IrdSpec) *string { return &s.SwitchAdmin }},
	{Key: "switchPort", Legacy: "portSw", Validate: pass, Ref: func(s *models.IrdSpec) *string { return &s.SwitchPort }},
}

// RequiredHeaders: минимальный набор колонок файла импорта.
var RequiredHeaders = []string{"name", "adminIp", "brand", "model"}

/* --- registry --- */

var byKey map[string]FieldDef

func init() {
	byKey = make(map[string]FieldDef, 2*len(Catalog))
	for _, d := range Catalog {
		byKey[d.Key] = d
		if d.Legacy != "" {
			byKey[d.Legacy] = d
		}
	}
}

// Def looks a field up by API key or legacy header.
func Def(key string) (FieldDef, bool) {
	d, ok := byKey[strings.TrimSpace(key)]
	return d, ok
}

// Build normalizes a full record. Required fields must be present and
// non-blank; unknown keys are ignored. When a key and its legacy alias are
// both present the API key wins.
func Build(op string, data map[string]string) (models.IrdSpec, error) {
	var spec models.IrdSpec
	for _, d := range Catalog {
		raw, ok := lookup(data, d)
		if d.Required && (!ok || strings.TrimSpace(raw) == "") {
			return models.IrdSpec{}, apperr.InvalidArgument(op, d.Key, "missing required field: %s", d.Key)
		}
		if !ok {
			continue
		}
		v, err := d.Validate(raw)
		if err != nil {
			return models.IrdSpec{}, apperr.InvalidArgument(op, d.Key, "%s: %v", d.Key, err)
		}
		*d.Ref(&spec) = v
	}
	return spec, nil
}

// Apply merges a partial update into spec. Required fields may be changed
// but not blanked.
func Apply(op string, spec *models.IrdSpec, patch map[string]string) error {
	next := *spec
	for _, d := range Catalog {
		raw, ok := lookup(patch, d)
		if !ok {
			continue
		}
		v, err := d.Validate(raw)
		if err != nil {
			return apperr.InvalidArgument(op, d.Key, "%s: %v", d.Key, err)
		}
		*d.Ref(&next) = v
	}
	*spec = next
	return nil
}

// MissingHeaders returns the required columns absent from headers.
func MissingHeaders(headers []string) []string {
	have := map[string]bool{}
	for _, h := range headers {
		if d, ok := Def(h); ok {
			have[d.Key] = true
		}
	}
	missing := []string{}
	for _, k := range RequiredHeaders {
		if !have[k] {
			missing = append(missing, k)
		}
	}
	return missing
}

func lookup(data map[string]string, d FieldDef) (string, bool) {
	if v, ok := data[d.Key]; ok {
		return v, true
	}
	if d.Legacy != "" {
		if v, ok := data[d.Legacy]; ok {
			return v, true
		}
	}
	return "", false
}
