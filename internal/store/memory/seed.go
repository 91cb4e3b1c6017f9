package memory

import (
	"context"

	"github.com/JonMunkholm/CRM/internal/core"
	"github.com/JonMunkholm/CRM/internal/store"
)

var samples = map[string][]map[string]string{
	"customers": {
		{"name": "Ada Byron", "email": "ada@analytical.io", "company": "Analytical Engines", "customer_since": "2021-03-14", "lifetime_value": "$12500"},
		{"name": "Grace Hopper", "email": "grace@cobol.dev", "company": "Compiler Co", "customer_since": "2019-12-09", "lifetime_value": "$48200"},
		{"name": "Alan Turing", "email": "alan@bletchley.uk", "phone": "+44 1908 640404", "lifetime_value": "$0"},
	},
	"leads": {
		{"name": "Katherine Johnson", "email": "kj@orbital.space", "source": "conference", "status": "new", "estimated_value": "$8000"},
		{"name": "Edsger Dijkstra", "email": "ewd@shortest.path", "source": "referral", "status": "contacted", "created": "2024-05-11"},
	},
	"events": {
		{"title": "Quarterly review", "date": "2024-07-01", "location": "HQ", "organizer_email": "grace@cobol.dev"},
	},
	"deals": {
		{"title": "Engine upgrade", "customer_email": "ada@analytical.io", "amount": "$15000", "stage": "proposal", "close_date": "2024-09-30"},
	},
}

// Seed loads the sample dataset for every schema in reg that has samples.
func Seed(ctx context.Context, s *Store, reg *core.Registry) error {
	for _, schema := range reg.All() {
		rows := samples[schema.Name]
		if len(rows) == 0 {
			continue
		}
		batch := make([]store.Record, 0, len(rows))
		for _, values := range rows {
			batch = append(batch, store.FromNormalized(schema, core.NormalizedRecord{Values: values}, ""))
		}
		if _, err := s.Upsert(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}
