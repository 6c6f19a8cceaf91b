package service

import (
	"strings"

	"github.com/coldreach/coldreach-backend/internal/model"
)

// RenderTemplate substitutes {{token}} placeholders with values from vars.
// Every token present in vars is replaced wherever it occurs; tokens absent
// from vars are left as literal text. Rendering never fails.
func RenderTemplate(template string, vars map[string]string) string {
	result := template
	for k, v := range vars {
		result = strings.ReplaceAll(result, "{{"+k+"}}", v)
	}
	return result
}

// LeadVariables is the variable set exposed to step templates.
func LeadVariables(l *model.Lead) map[string]string {
	return map[string]string{
		"firstName": l.FirstName,
		"lastName":  l.LastName,
		"company":   l.Company,
		"email":     l.Email,
	}
}
