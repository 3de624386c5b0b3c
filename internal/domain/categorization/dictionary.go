package categorization

// DictionaryEntry ties a category label to the keywords that suggest it.
type DictionaryEntry struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

// Dictionary is an ordered list of entries. Order breaks ties between keywords of the
// same length.
type Dictionary []DictionaryEntry

// DefaultDictionary covers common Iberian and Latin American merchants plus generic
// statement wording.
func DefaultDictionary() Dictionary {
	return Dictionary{
		{Label: "Groceries", Keywords: []string{
			"pingo doce", "continente", "lidl", "aldi", "mercadona", "minipreco", "intermarche",
			"carrefour", "dia market", "supermercado", "jumbo", "lider", "unimarc", "santa isabel",
			"tottus", "walmart", "soriana", "chedraui",
		}},
		{Label: "Delivery", Keywords: []string{
			"uber eats", "glovo", "bolt food", "just eat", "rappi", "pedidosya", "didi food",
		}},
		{Label: "Restaurants", Keywords: []string{
			"starbucks", "mcdonalds", "burger king", "kfc", "pizza hut", "telepizza",
			"restaurante", "restaurant", "cafeteria",
		}},
		{Label: "Transport", Keywords: []string{
			"uber", "bolt", "free now", "freenow", "cabify", "didi", "viva viagem", "comboios",
			"renfe", "metro", "ryanair", "vueling", "iberia", "tap air", "latam", "sky airline",
		}},
		{Label: "Fuel", Keywords: []string{
			"galp", "repsol", "cepsa", "shell", "copec", "petrobras", "bp station", "gasolinera",
		}},
		{Label: "Utilities", Keywords: []string{
			"edp", "epal", "endesa", "iberdrola", "naturgy", "aguas andinas",
		}},
		{Label: "Telecom", Keywords: []string{
			"meo", "altice", "vodafone", "movistar", "orange", "entel", "claro", "telefonica",
		}},
		{Label: "Shopping", Keywords: []string{
			"amazon", "aliexpress", "mercadolibre", "mercado libre", "ikea", "worten", "fnac",
			"el corte ingles", "falabella", "ripley",
		}},
		{Label: "Clothing", Keywords: []string{
			"zara", "primark", "pull bear", "bershka", "mango", "decathlon",
		}},
		{Label: "Streaming", Keywords: []string{
			"netflix", "spotify", "disney", "hbo max", "apple.com", "youtube premium",
		}},
		{Label: "Gaming", Keywords: []string{
			"playstation", "psn", "xbox", "steam", "nintendo",
		}},
		{Label: "Pharmacy", Keywords: []string{
			"farmacia", "wells", "cruz verde", "salcobrand", "ahumada",
		}},
		{Label: "Bank Fees", Keywords: []string{
			"comision", "comissao", "commission", "cuota mantencion", "manutencao",
		}},
		{Label: "Salary", Keywords: []string{
			"nomina", "salario", "sueldo", "vencimento", "salary", "payroll", "remuneracion",
		}},
		{Label: "Rent", Keywords: []string{
			"alquiler", "arriendo", "renda",
		}},
		{Label: "Transfers", Keywords: []string{
			"transferencia", "transfer", "mb way", "bizum", "revolut", "paypal",
		}},
	}
}
