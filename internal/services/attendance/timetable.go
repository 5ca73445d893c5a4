package attendance

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Subject is one entry of the subject/credit catalog.
type Subject struct {
	Code    string `yaml:"code" json:"code"`
	Name    string `yaml:"name" json:"name"`
	Credits int    `yaml:"credits" json:"credits"`
}

// Catalog is the set of subjects attendance is tracked against.
type Catalog []Subject

// CatalogProvider supplies the subject catalog for summaries. The
// service falls back to DefaultCatalog when the provider fails or
// returns nothing.
type CatalogProvider interface {
	Subjects() (Catalog, error)
}

// DefaultCatalog is the fallback subject list used when no timetable
// is configured for the semester.
var DefaultCatalog = Catalog{
	{Code: "MCA101", Name: "Advanced Data Structures", Credits: 4},
	{Code: "MCA102", Name: "Database Management Systems", Credits: 4},
	{Code: "MCA103", Name: "Operating Systems", Credits: 4},
	{Code: "MCA104", Name: "Software Engineering", Credits: 3},
	{Code: "MCA105", Name: "Computer Networks", Credits: 3},
}

// FileTimetable loads the catalog from a YAML timetable file.
//
// Expected shape:
//
//	subjects:
//	  - code: MCA101
//	    name: Advanced Data Structures
//	    credits: 4
type FileTimetable struct {
	Path string
}

// Subjects implements CatalogProvider.
func (f FileTimetable) Subjects() (Catalog, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timetable %s: %w", f.Path, err)
	}

	var doc struct {
		Subjects Catalog `yaml:"subjects"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse timetable %s: %w", f.Path, err)
	}
	return doc.Subjects, nil
}

// StaticCatalog is a fixed-catalog provider for tests.
type StaticCatalog Catalog

// Subjects implements CatalogProvider.
func (s StaticCatalog) Subjects() (Catalog, error) {
	return Catalog(s), nil
}
