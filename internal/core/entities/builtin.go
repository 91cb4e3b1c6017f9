// Package entities defines the CRM entity schemas served by the import
// pipeline and loads additional schemas from a TOML file.
package entities

import "github.com/JonMunkholm/CRM/internal/core"

// Builtin returns the schemas every deployment knows about.
func Builtin() []core.EntitySchema {
	return []core.EntitySchema{
		customers(),
		leads(),
		events(),
		deals(),
	}
}

func customers() core.EntitySchema {
	return core.EntitySchema{
		Name:  "customers",
		Label: "Customers",
		Key:   "email",
		Fields: []core.FieldSpec{
			{Name: "name", Required: true, Kind: core.KindText},
			{Name: "email", Required: true, Kind: core.KindEmail},
			{Name: "company", Kind: core.KindText},
			{Name: "phone", Kind: core.KindText},
			{Name: "customer_since", Kind: core.KindDate},
			{Name: "lifetime_value", Kind: core.KindCurrency},
		},
	}
}

func leads() core.EntitySchema {
	return core.EntitySchema{
		Name:  "leads",
		Label: "Leads",
		Key:   "email",
		Fields: []core.FieldSpec{
			{Name: "name", Required: true, Kind: core.KindText},
			{Name: "email", Required: true, Kind: core.KindEmail},
			{Name: "source", Kind: core.KindText},
			{Name: "status", Kind: core.KindText},
			{Name: "created", Kind: core.KindDate},
			{Name: "estimated_value", Kind: core.KindCurrency},
		},
	}
}

func events() core.EntitySchema {
	return core.EntitySchema{
		Name:  "events",
		Label: "Events",
		Key:   "title",
		Fields: []core.FieldSpec{
			{Name: "title", Required: true, Kind: core.KindText},
			{Name: "date", Required: true, Kind: core.KindDate},
			{Name: "location", Kind: core.KindText},
			{Name: "organizer_email", Kind: core.KindEmail},
			{Name: "description", Kind: core.KindText},
		},
	}
}

func deals() core.EntitySchema {
	return core.EntitySchema{
		Name:  "deals",
		Label: "Deals",
		Key:   "title",
		Fields: []core.FieldSpec{
			{Name: "title", Required: true, Kind: core.KindText},
			{Name: "customer_email", Required: true, Kind: core.KindEmail},
			{Name: "amount", Required: true, Kind: core.KindCurrency},
			{Name: "stage", Kind: core.KindText},
			{Name: "close_date", Kind: core.KindDate},
		},
	}
}
