package clientdata

import "time"

// Table describes one cache table in client_data.db. Every table has the
// same shape: a text key column, a JSON data column and an expires_at unix
// timestamp.
type Table struct {
	Name      string
	KeyColumn string
	TTL       time.Duration
}

var (
	// ExchangeRates holds currency rates keyed by "FROM:TO"
	ExchangeRates = Table{Name: "exchangerate", KeyColumn: "pair", TTL: time.Hour}
	// Quotes holds chart quotes keyed by provider symbol
	Quotes = Table{Name: "quotes", KeyColumn: "symbol", TTL: 10 * time.Minute}
	// Fundamentals holds key statistics keyed by provider symbol
	Fundamentals = Table{Name: "fundamentals", KeyColumn: "symbol", TTL: 7 * 24 * time.Hour}
)

// Tables lists every cache table, in purge order
var Tables = []Table{ExchangeRates, Quotes, Fundamentals}

func (t Table) known() bool {
	for _, k := range Tables {
		if k == t {
			return true
		}
	}
	return false
}
