// Copyright 2023 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package stats aggregates registry records into the dashboard figures.
package stats

import (
	"strings"
	"time"
	"unicode"

	"github.com/unilibre/proyectos/internal"
	"github.com/unilibre/proyectos/pkg/datamodel"
	"github.com/unilibre/proyectos/pkg/normalize"
)

const (
	topAdvisors = 10
	recentDates = 15

	// NotSpecified replaces a blank program.
	NotSpecified = "No especificado"
)

// Status is the review state of a milestone cell.
type Status int

const (
	StatusUnspecified Status = iota
	StatusApproved
	StatusReview
	StatusRejected
)

var (
	rejectedWords = map[string]bool{"no": true, "rechazado": true, "rechazada": true, "rejected": true, "reprobado": true, "reprobada": true}
	reviewWords   = map[string]bool{"revision": true, "revisando": true, "pendiente": true, "proceso": true}
	approvedWords = map[string]bool{"aprobado": true, "aprobada": true, "approved": true, "si": true, "yes": true}

	ignoredAdvisors = map[string]bool{"no especificado": true, "sin especificar": true, "none": true}
	ignoredDates    = map[string]bool{"no especificado": true, "none": true}
)

// Classify maps a free-text milestone cell to a Status. Rejections are checked
// before review terms and approvals; any other non-blank text counts as approved.
func Classify(value string) Status {
	status, _ := classify(value)
	return status
}

// classify also reports whether an approval term was present.
func classify(value string) (Status, bool) {
	words := strings.FieldsFunc(normalize.Text(value), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return StatusUnspecified, false
	}
	for _, w := range words {
		if rejectedWords[w] {
			return StatusRejected, false
		}
	}
	for _, w := range words {
		if reviewWords[w] {
			return StatusReview, false
		}
	}
	for _, w := range words {
		if approvedWords[w] {
			return StatusApproved, true
		}
	}
	return StatusApproved, false
}

type Totals struct {
	Projects    int `json:"total_proyectos"`
	Proposals   int `json:"total_propuestas"`
	PreProjects int `json:"total_anteproyectos"`
	FinalWorks  int `json:"total_trabajos_finales"`
}

type ApprovedCounts struct {
	Proposals  int `json:"propuestas_aprobadas"`
	FinalWorks int `json:"trabajos_finales_aprobados"`
}

type StatusCounts struct {
	Approved    int `json:"aprobados"`
	Review      int `json:"revision"`
	Rejected    int `json:"no_aprobados"`
	Unspecified int `json:"no_especificado"`
}

func (s *StatusCounts) add(status Status) {
	switch status {
	case StatusApproved:
		s.Approved++
	case StatusReview:
		s.Review++
	case StatusRejected:
		s.Rejected++
	default:
		s.Unspecified++
	}
}

type StatusGroups struct {
	Proposals   StatusCounts `json:"propuestas"`
	PreProjects StatusCounts `json:"anteproyectos"`
	FinalWorks  StatusCounts `json:"trabajos_finales"`
}

// Stats is the detailed statistics document.
type Stats struct {
	Totals    Totals         `json:"totales"`
	Approved  ApprovedCounts `json:"estados_contadores"`
	ByProgram Counter        `json:"por_programa"`
	ByAdvisor Counter        `json:"por_asesor"`
	Statuses  StatusGroups   `json:"estados"`
	ByDate    Counter        `json:"por_fecha"`
	ByYear    Counter        `json:"por_ano"`
	UpdatedAt string         `json:"ultima_actualizacion"`
}

// Compute aggregates records. Header variants that differ in case, accents or
// surrounding whitespace are treated as the same column.
func Compute(records []datamodel.Record, now time.Time) Stats {
	s := Stats{
		ByProgram: NewCounter(),
		ByYear:    NewCounter(),
		UpdatedAt: now.Format(internal.IsoTimestamp),
	}
	s.Totals.Projects = len(records)
	advisors := NewCounter()
	dates := NewCounter()

	for _, r := range records {
		proposal, proposalApproved := classify(r.Lookup(datamodel.ColumnProposal))
		preProject, _ := classify(r.Lookup(datamodel.ColumnPreProject))
		finalWork, finalApproved := classify(r.Lookup(datamodel.ColumnFinalWork))

		s.Statuses.Proposals.add(proposal)
		s.Statuses.PreProjects.add(preProject)
		s.Statuses.FinalWorks.add(finalWork)

		if proposal != StatusUnspecified {
			s.Totals.Proposals++
		}
		if proposalApproved {
			s.Approved.Proposals++
		}
		if preProject != StatusUnspecified {
			s.Totals.PreProjects++
		}
		if finalWork != StatusUnspecified {
			s.Totals.FinalWorks++
		}
		if finalApproved {
			s.Approved.FinalWorks++
		}

		program := strings.TrimSpace(r.Lookup(datamodel.ColumnProgram))
		if program == "" {
			program = NotSpecified
		}
		s.ByProgram.Add(program)

		if advisor := strings.TrimSpace(r.Lookup(datamodel.ColumnAdvisor)); advisor != "" && !ignoredAdvisors[strings.ToLower(advisor)] {
			advisors.Add(advisor)
		}
		if date := strings.TrimSpace(r.Lookup(datamodel.ColumnDefenseDate)); date != "" && !ignoredDates[strings.ToLower(date)] {
			dates.Add(date)
		}
		if year := strings.TrimSpace(r.Lookup(datamodel.ColumnYear)); isDigits(year) {
			s.ByYear.Add(year)
		}
	}

	s.ByAdvisor = advisors.TopN(topAdvisors)
	s.ByDate = dates.LastNByKey(recentDates)
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
