// Package recommend maps an extracted hiring profile to one of the offered services.
package recommend

import (
	"strings"

	"github.com/spigell/recruitgenie/internal/gateway"
)

// Service is an entry of the service catalog.
type Service struct {
	Name        string
	Description string
}

const (
	TechStartupHiringPack = "Tech Startup Hiring Pack"
	ExecutiveSearch       = "Executive Search"
	ContractStaffing      = "Contract Staffing"
	GeneralRecruitment    = "General Recruitment"
)

var catalog = []Service{
	{
		Name:        TechStartupHiringPack,
		Description: "Perfect for early-stage startups needing to build a core technical team quickly. Includes sourcing, screening, and coordinating interviews for up to 3 technical roles.",
	},
	{
		Name:        ExecutiveSearch,
		Description: "A dedicated search for C-level and leadership roles. We leverage our network to find the best talent to lead your company.",
	},
	{
		Name:        ContractStaffing,
		Description: "Ideal for temporary projects or filling skill gaps without long-term commitment. We provide vetted contractors for specific durations.",
	},
	{
		Name:        GeneralRecruitment,
		Description: "Our standard package for individual hires across various non-technical domains like marketing, sales, and operations.",
	},
}

var (
	techIndustryKeywords = []string{"tech", "startup"}
	techRoleKeywords     = []string{"engineer", "developer", "designer"}
	executiveKeywords    = []string{"executive", "manager", "director", "c-level"}
)

// Catalog returns a copy of every offered service in display order.
func Catalog() []Service {
	return append([]Service(nil), catalog...)
}

// Lookup returns the catalog entry with the given name.
func Lookup(name string) (Service, bool) {
	for _, service := range catalog {
		if service.Name == name {
			return service, true
		}
	}

	return Service{}, false
}

// Recommend picks a service for the profile. Rules are evaluated in order and
// the first match wins. No recommendation is made until at least one role is known.
//
// Contract Staffing is never returned: no rule selects it.
func Recommend(data *gateway.ExtractedData) (Service, bool) {
	if !data.HasRoles() {
		return Service{}, false
	}

	roles := make([]string, 0, len(data.Roles))
	for _, r := range data.Roles {
		roles = append(roles, strings.ToLower(r.Role))
	}
	industry := strings.ToLower(data.Industry)

	if containsAny(industry, techIndustryKeywords) || anyContains(roles, techRoleKeywords) {
		return mustLookup(TechStartupHiringPack), true
	}

	if anyContains(roles, executiveKeywords) {
		return mustLookup(ExecutiveSearch), true
	}

	return mustLookup(GeneralRecruitment), true
}

func containsAny(s string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(s, keyword) {
			return true
		}
	}

	return false
}

func anyContains(values []string, keywords []string) bool {
	for _, value := range values {
		if containsAny(value, keywords) {
			return true
		}
	}

	return false
}

func mustLookup(name string) Service {
	service, ok := Lookup(name)
	if !ok {
		panic("recommend: service missing from catalog: " + name)
	}

	return service
}
