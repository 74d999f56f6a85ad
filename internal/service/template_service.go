package service

import (
	"strings"

	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/model"
)

// RenderTemplate substitutes {placeholder} tokens with prospect fields.
// Empty fields render as an empty string rather than leaking the token.
func RenderTemplate(template string, p *model.Prospect) string {
	data := map[string]string{
		"first_name": p.FirstName,
		"last_name":  p.LastName,
		"full_name":  strings.TrimSpace(p.FirstName + " " + p.LastName),
		"company":    p.Company,
	}
	result := template
	for k, v := range data {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}
