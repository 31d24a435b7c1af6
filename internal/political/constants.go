package political

// Campaign segmentation and ordering choices. String values are stored
// in campaign rows and serialized into call state, so they are part of
// the wire contract.
const (
	SegmentByLocation = "location"
	SegmentByCustom   = "custom"

	LocationPostal   = "postal"
	LocationAddress  = "address"
	LocationLatLon   = "latlon"
	LocationDistrict = "district"

	IncludeSpecialFirst = "first"
	IncludeSpecialLast  = "last"
	IncludeSpecialOnly  = "only"

	TargetOfficeDistrict = "district"
	TargetOfficeBusy     = "busy"

	OrderShuffle    = "shuffle"
	OrderUpperFirst = "upper-first"
	OrderLowerFirst = "lower-first"
)

// Campaign type keys shared by every country provider.
const (
	TypeExecutive  = "executive"
	TypeCongress   = "congress"
	TypeParliament = "parliament"
	TypeState      = "state"
	TypeProvince   = "province"
	TypeLocal      = "local"
	TypeCustom     = "custom"
)

// Subtype keys select which chamber groups a campaign calls.
const (
	SubtypeBoth  = "both"
	SubtypeUpper = "upper"
	SubtypeLower = "lower"
	SubtypeExec  = "exec"
)

// CampaignSpec is the slice of a campaign that target resolution
// needs. Keeping it a plain value decouples this package from the
// campaign storage model.
type CampaignSpec struct {
	ID      int64
	Country string
	Type    string
	Subtype string
	Region  string

	SegmentBy      string
	LocateBy       string
	IncludeSpecial string
	TargetOrder    string

	// CustomTargets holds admin-chosen target uids in display order.
	CustomTargets []string
}
