package models

import "strings"

// SpecialtyOther is used when a document carries no specialty.
const SpecialtyOther = "altro"

// Specialties is the medical taxonomy documents are grouped by.
var Specialties = []string{
	"allergologia",
	"anestesia e rianimazione",
	"angiologia",
	"cardiologia",
	"chirurgia generale",
	"chirurgia vascolare",
	"dermatologia",
	"endocrinologia",
	"ematologia",
	"gastroenterologia",
	"geriatria",
	"ginecologia",
	"infettivologia",
	"medicina generale",
	"medicina interna",
	"nefrologia",
	"neurologia",
	"nutrizione clinica",
	"oftalmologia",
	"oncologia",
	"ortopedia",
	"otorinolaringoiatria",
	"pediatria",
	"pneumologia",
	"psichiatria",
	"radiologia",
	"reumatologia",
	"urologia",
	SpecialtyOther,
}

// SelectSpecialty maps a raw specialty label onto the taxonomy. Unknown
// labels are kept in normalized form, empty ones become SpecialtyOther.
func SelectSpecialty(raw string) string {
	norm := strings.ToLower(strings.TrimSpace(raw))
	if norm == "" {
		return SpecialtyOther
	}
	for _, s := range Specialties {
		if s == norm {
			return s
		}
	}
	return norm
}
