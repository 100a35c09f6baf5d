package model

// Course is a programme offered by a college together with its seat
// inventory.  AvailableSeats and CategorySeats are decremented when a seat
// is allotted and incremented again when an allotment is rejected,
// cancelled or superseded by an upgrade.
//
// Fields:
//
//	ID             – primary key identifier.
//	CollegeID      – owning college.
//	Code           – course code, unique within the college.
//	Name           – display name.
//	CollegeName    – joined from colleges.name for notifications.
//	IsActive       – administratively enabled for allotment.
//	MinRank        – best rank admitted, nil when unrestricted.
//	MaxRank        – worst rank admitted, nil when unrestricted.
//	TotalSeats     – sanctioned intake.
//	AvailableSeats – seats not yet allotted.
//	CategorySeats  – remaining seats per category.
//	Version        – optimistic locking counter for seat updates.
type Course struct {
	ID             uint64           `json:"id"`              // courses.id
	CollegeID      uint64           `json:"college_id"`      // courses.college_id
	Code           string           `json:"code"`            // courses.code
	Name           string           `json:"name"`            // courses.name
	CollegeName    string           `json:"college_name"`    // colleges.name
	IsActive       bool             `json:"is_active"`       // courses.is_active
	MinRank        *int             `json:"min_rank"`        // courses.min_rank (nullable)
	MaxRank        *int             `json:"max_rank"`        // courses.max_rank (nullable)
	TotalSeats     int              `json:"total_seats"`     // courses.total_seats
	AvailableSeats int              `json:"available_seats"` // courses.available_seats
	CategorySeats  map[Category]int `json:"category_seats"`  // courses.general_seats .. courses.ews_seats
	Version        uint32           `json:"-"`               // courses.version
}

// Clone returns a deep copy so callers can mutate seat counters without
// touching the original.
func (c Course) Clone() Course {
	out := c
	out.CategorySeats = make(map[Category]int, len(c.CategorySeats))
	for k, v := range c.CategorySeats {
		out.CategorySeats[k] = v
	}
	if c.MinRank != nil {
		v := *c.MinRank
		out.MinRank = &v
	}
	if c.MaxRank != nil {
		v := *c.MaxRank
		out.MaxRank = &v
	}
	return out
}
