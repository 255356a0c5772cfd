package tenants

// Sector is a catalog entry describing how the assistant behaves for a
// business vertical: the default system prompt plus feature flags.
type Sector struct {
	ID              string `json:"id"`
	Label           string `json:"label"`
	SystemPrompt    string `json:"-"`
	SupportsMenu    bool   `json:"supports_menu"`
	SupportsBooking bool   `json:"supports_booking"`
}

// SectorOtherID is the explicit fallback entry used for unset or unknown
// sectors. Lookups never scan; they hit the map and fall back by name.
const SectorOtherID = "autre"

var sectorCatalog = map[string]Sector{
	"coiffure": {
		ID:              "coiffure",
		Label:           "Hair salon",
		SupportsBooking: true,
		SystemPrompt: "You are the virtual receptionist of a hair salon. " +
			"Answer customers on WhatsApp in their language, briefly and warmly. " +
			"Help them pick a service (cut, color, styling) and book an appointment. " +
			"When a customer wants an appointment, collect the desired date, time and service before confirming.",
	},
	"restaurant": {
		ID:              "restaurant",
		Label:           "Restaurant",
		SupportsMenu:    true,
		SupportsBooking: true,
		SystemPrompt: "You are the virtual host of a restaurant. " +
			"Answer customers on WhatsApp in their language, briefly and warmly. " +
			"Help with menu questions, opening hours and table reservations. " +
			"When a customer wants a table, collect the date, time and party size before confirming.",
	},
	"beaute": {
		ID:              "beaute",
		Label:           "Beauty institute",
		SupportsBooking: true,
		SystemPrompt: "You are the virtual receptionist of a beauty institute. " +
			"Answer customers on WhatsApp in their language, briefly and warmly. " +
			"Help them choose a treatment and book an appointment. " +
			"When a customer wants an appointment, collect the desired date, time and treatment before confirming.",
	},
	"sante": {
		ID:              "sante",
		Label:           "Health practice",
		SupportsBooking: true,
		SystemPrompt: "You are the virtual secretary of a health practice. " +
			"Answer patients on WhatsApp in their language, briefly and professionally. " +
			"Never give medical advice; offer to book a consultation instead. " +
			"When a patient wants an appointment, collect the desired date and time before confirming.",
	},
	"commerce": {
		ID:           "commerce",
		Label:        "Retail shop",
		SupportsMenu: true,
		SystemPrompt: "You are the virtual assistant of a retail shop. " +
			"Answer customers on WhatsApp in their language, briefly and helpfully. " +
			"Help with product availability, prices, opening hours and directions.",
	},
	SectorOtherID: {
		ID:              SectorOtherID,
		Label:           "Other",
		SupportsBooking: true,
		SystemPrompt: "You are the virtual assistant of a small business. " +
			"Answer customers on WhatsApp in their language, briefly and politely. " +
			"Help with questions about the business and take appointment requests when asked.",
	},
}

// SectorByID returns the catalog entry for id, or the explicit fallback entry
// when id is empty or unknown.
func SectorByID(id string) Sector {
	if s, ok := sectorCatalog[id]; ok {
		return s
	}
	return sectorCatalog[SectorOtherID]
}

// Sectors returns the full catalog in stable order for dashboard pickers.
func Sectors() []Sector {
	ids := []string{"coiffure", "restaurant", "beaute", "sante", "commerce", SectorOtherID}
	out := make([]Sector, 0, len(ids))
	for _, id := range ids {
		out = append(out, sectorCatalog[id])
	}
	return out
}
