package openfinance

import (
	"strings"

	"finboard/internal/core"
)

type Institution struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Logo              string   `json:"logo"`
	Kind              string   `json:"type"`
	Color             string   `json:"color"`
	SupportedServices []string `json:"supportedServices"`
}

var (
	fullServices    = []string{"accounts", "transactions", "credit_cards"}
	limitedServices = []string{"accounts", "transactions"}
)

var institutions = []Institution{
	{ID: "bb", Name: "Banco do Brasil", Logo: "🏦", Kind: "bank", Color: "#FCE300", SupportedServices: fullServices},
	{ID: "itau", Name: "Itaú Unibanco", Logo: "🏦", Kind: "bank", Color: "#FF7A00", SupportedServices: fullServices},
	{ID: "bradesco", Name: "Bradesco", Logo: "🏦", Kind: "bank", Color: "#CC092F", SupportedServices: fullServices},
	{ID: "santander", Name: "Santander", Logo: "🏦", Kind: "bank", Color: "#EC0000", SupportedServices: fullServices},
	{ID: "caixa", Name: "Caixa Econômica Federal", Logo: "🏦", Kind: "bank", Color: "#005CA9", SupportedServices: limitedServices},
	{ID: "nubank", Name: "Nubank", Logo: "💳", Kind: "fintech", Color: "#8A05BE", SupportedServices: fullServices},
	{ID: "inter", Name: "Banco Inter", Logo: "🧡", Kind: "fintech", Color: "#FF7A00", SupportedServices: fullServices},
	{ID: "c6", Name: "C6 Bank", Logo: "⚫", Kind: "fintech", Color: "#242424", SupportedServices: fullServices},
}

// Institutions lists the institutions a connection can be opened with.
func Institutions() []Institution {
	out := make([]Institution, len(institutions))
	copy(out, institutions)
	return out
}

func institutionByID(id string) (Institution, error) {
	for _, inst := range institutions {
		if inst.ID == id {
			return inst, nil
		}
	}
	return Institution{}, core.NotFound("institution", id)
}

// consentID is the external identifier stored on the connection. It keeps
// the institution id so accounts can be rebuilt from the stored record.
func consentID(institutionID, code string) string {
	return institutionID + ":" + code
}

func institutionOf(c core.Connection) (Institution, error) {
	id, _, _ := strings.Cut(c.ConnectionID, ":")
	if inst, err := institutionByID(id); err == nil {
		return inst, nil
	}
	for _, inst := range institutions {
		if inst.Name == c.InstitutionName {
			return inst, nil
		}
	}
	return Institution{}, core.NotFound("institution", c.InstitutionName)
}
