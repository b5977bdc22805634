package redis

// Redis layout shared with the device bridge.
const (
	RequestsChannel = "geolocation:requests"
	SamplesChannel  = "geolocation:samples"
	CapabilityKey   = "geolocation:capability"
	PermissionsKey  = "geolocation:permissions"

	fieldLocationPresent = "location_present"
	fieldCoarse          = "coarse"
	fieldFine            = "fine"
	fieldShowRationale   = "show_rationale"
	fieldCanRequest      = "can_request"
)
