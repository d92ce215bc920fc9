package http

// Request payloads. Numeric fields are pointers so a missing field is
// distinguishable from zero and rejected by validation instead of being
// silently coerced. Optional fields carry the documented defaults.

type addScheduleRequest struct {
	Hour      *int   `json:"hour" validate:"required,min=0,max=23"`
	Minute    *int   `json:"minute" validate:"required,min=0,max=59"`
	Duration  *int   `json:"duration" validate:"required,min=1,max=3600"`
	DayOfWeek *int   `json:"dayOfWeek" validate:"required,min=0,max=6"`
	Label     string `json:"label"`
	Enabled   *bool  `json:"enabled"`
	Mode      *int   `json:"mode" validate:"omitempty,min=1,max=3"`
}

type updateScheduleRequest struct {
	ID        *int   `json:"id" validate:"required,min=1"`
	Hour      *int   `json:"hour" validate:"required,min=0,max=23"`
	Minute    *int   `json:"minute" validate:"required,min=0,max=59"`
	Duration  *int   `json:"duration" validate:"required,min=1,max=3600"`
	DayOfWeek *int   `json:"dayOfWeek" validate:"required,min=0,max=6"`
	Label     string `json:"label"`
	Enabled   *bool  `json:"enabled"`
	Mode      *int   `json:"mode" validate:"omitempty,min=1,max=3"`
}

type deleteScheduleRequest struct {
	ID *int `json:"id" validate:"required,min=1"`
}

type ringNowRequest struct {
	Duration *int `json:"duration" validate:"omitempty,min=1,max=3600"`
}

type timeSyncRequest struct {
	Year   *int `json:"year" validate:"required,min=2000,max=2199"`
	Month  *int `json:"month" validate:"required,min=1,max=12"`
	Day    *int `json:"day" validate:"required,min=1,max=31"`
	Hour   *int `json:"hour" validate:"required,min=0,max=23"`
	Minute *int `json:"minute" validate:"required,min=0,max=59"`
	Second *int `json:"second" validate:"required,min=0,max=59"`
}

type setModeRequest struct {
	Mode *int `json:"mode" validate:"required"`
}
