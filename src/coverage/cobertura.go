// Package coverage reads Cobertura coverage reports and uploads them to a
// coverage aggregation service.
package coverage

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
)

// Report is a parsed coverage report.
type Report struct {
	LineRate     float64
	LinesCovered int
	LinesValid   int

	// Sources are the source roots recorded by the coverage tool (container paths).
	Sources []string

	// Files are sorted by name. Names are relative to a source root.
	Files []File
}

// File is the line coverage of one source file.
type File struct {
	Name string

	// Hits maps line number to hit count. Lines absent from the map are not
	// relevant (comments, blank lines, excluded code).
	Hits map[int]int
}

// Percent returns line coverage as 0..100.
func (r *Report) Percent() float64 {
	if r.LinesValid > 0 {
		return 100 * float64(r.LinesCovered) / float64(r.LinesValid)
	}
	return 100 * r.LineRate
}

// MaxLine returns the highest relevant line number.
func (f File) MaxLine() int {
	max := 0
	for n := range f.Hits {
		if n > max {
			max = n
		}
	}
	return max
}

type coberturaXML struct {
	XMLName      xml.Name `xml:"coverage"`
	LineRate     float64  `xml:"line-rate,attr"`
	LinesCovered int      `xml:"lines-covered,attr"`
	LinesValid   int      `xml:"lines-valid,attr"`
	Sources      []string `xml:"sources>source"`
	Packages     []struct {
		Classes []struct {
			Filename string `xml:"filename,attr"`
			Lines    []struct {
				Number int `xml:"number,attr"`
				Hits   int `xml:"hits,attr"`
			} `xml:"lines>line"`
		} `xml:"classes>class"`
	} `xml:"packages>package"`
}

// ParseCobertura decodes a Cobertura XML report. Classes that share a file
// are merged.
func ParseCobertura(r io.Reader) (*Report, error) {
	var doc coberturaXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing cobertura report: %w", err)
	}

	files := make(map[string]map[int]int)
	for _, pkg := range doc.Packages {
		for _, cls := range pkg.Classes {
			hits, ok := files[cls.Filename]
			if !ok {
				hits = make(map[int]int)
				files[cls.Filename] = hits
			}
			for _, l := range cls.Lines {
				hits[l.Number] += l.Hits
			}
		}
	}

	report := &Report{
		LineRate:     doc.LineRate,
		LinesCovered: doc.LinesCovered,
		LinesValid:   doc.LinesValid,
		Sources:      doc.Sources,
	}
	for name, hits := range files {
		report.Files = append(report.Files, File{Name: name, Hits: hits})
	}
	sort.Slice(report.Files, func(i, j int) bool { return report.Files[i].Name < report.Files[j].Name })

	if report.LinesValid == 0 {
		for _, f := range report.Files {
			for _, h := range f.Hits {
				report.LinesValid++
				if h > 0 {
					report.LinesCovered++
				}
			}
		}
	}
	return report, nil
}

// ReadCobertura parses the report at path.
func ReadCobertura(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseCobertura(f)
}
