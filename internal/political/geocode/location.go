package geocode

// Service tags identify which backend produced a Location. Accessors
// branch on the tag because every backend lays out its raw address
// components differently.
const (
	ServiceGoogle    = "google"
	ServiceNominatim = "nominatim"

	// ServiceLocalDistricts marks a Location synthesized from the
	// provider's own zip-to-district dataset, skipping the network.
	ServiceLocalDistricts = "local-districts"

	// ServiceTimeout marks the sentinel returned when a backend timed
	// out. All fields are empty; callers treat it as "not found".
	ServiceTimeout = "timeout"
)

// District is one postal-code-to-district row from a provider's local
// dataset.
type District struct {
	Zipcode       string
	State         string
	HouseDistrict string
}

// GoogleComponent mirrors one entry of a Google geocode response's
// address_components list.
type GoogleComponent struct {
	Types     []string `json:"types"`
	ShortName string   `json:"short_name"`
	LongName  string   `json:"long_name"`
}

// Location is the canonical, transient location value. The raw
// component payload keeps its producing service's shape; Postal, State
// and LatLon compute on demand.
type Location struct {
	Service string
	Address string

	Latitude  float64
	Longitude float64
	HasCoords bool

	GoogleComponents []GoogleComponent
	NominatimAddress map[string]string
	LocalComponents  map[string]string
}

// Found reports whether the location carries any usable data.
func (l Location) Found() bool {
	return l.Service != "" && l.Service != ServiceTimeout &&
		(l.Postal() != "" || l.State() != "" || l.HasCoords)
}

func (l Location) Postal() string {
	switch l.Service {
	case ServiceGoogle:
		return l.findGoogle("postal_code")
	case ServiceNominatim:
		return l.NominatimAddress["postcode"]
	case ServiceLocalDistricts:
		return l.LocalComponents["zipcode"]
	default:
		return ""
	}
}

func (l Location) State() string {
	switch l.Service {
	case ServiceGoogle:
		// administrative_area_level_1 short names are already state
		// abbreviations for US/CA.
		return l.findGoogle("administrative_area_level_1")
	case ServiceNominatim:
		// Nominatim returns full state names; map to abbreviations.
		name := l.NominatimAddress["state"]
		if abbr, ok := usStateAbbr[name]; ok {
			return abbr
		}
		return name
	case ServiceLocalDistricts:
		return l.LocalComponents["state"]
	default:
		return ""
	}
}

func (l Location) LatLon() (lat, lng float64, ok bool) {
	return l.Latitude, l.Longitude, l.HasCoords
}

func (l Location) findGoogle(componentType string) string {
	for _, c := range l.GoogleComponents {
		for _, t := range c.Types {
			if t == componentType {
				return c.ShortName
			}
		}
	}
	return ""
}

// timeoutLocation is the sentinel for backend timeouts.
func timeoutLocation() Location {
	return Location{Service: ServiceTimeout}
}
