package model

// Applicant is a ranked candidate competing for seats.  Rank and category
// are read once per allotment run and copied onto every allotment created
// for the applicant.
//
// Fields:
//
//	ID                 – primary key identifier.
//	UserID             – account that owns the applicant profile.
//	FullName           – display name used in notifications.
//	Rank               – merit rank, lower is better.
//	Category           – reservation category.
//	DocumentsVerified  – documents accepted by the verification desk.
//	PaymentComplete    – counselling fee received.
//	PreferencesLocked  – preference list submitted and locked.
//	SeatAllotted       – set once the applicant receives any seat.
//	AdmissionConfirmed – set when the applicant freezes a seat.
type Applicant struct {
	ID                 uint64   // applicants.id
	UserID             uint64   // applicants.user_id
	FullName           string   // applicants.full_name
	Rank               int      // applicants.exam_rank
	Category           Category // applicants.category
	DocumentsVerified  bool     // applicants.documents_verified
	PaymentComplete    bool     // applicants.payment_complete
	PreferencesLocked  bool     // applicants.preferences_locked
	SeatAllotted       bool     // applicants.seat_allotted
	AdmissionConfirmed bool     // applicants.admission_confirmed
}

// Eligible reports whether every gating flag required to take part in an
// allotment run is set.
func (a Applicant) Eligible() bool {
	return a.DocumentsVerified && a.PaymentComplete && a.PreferencesLocked
}

// Preference is one entry of an applicant's ordered course list.  Order is
// 1-based, 1 being the most preferred course.
type Preference struct {
	ApplicantID uint64 // preferences.applicant_id
	CourseID    uint64 // preferences.course_id
	Order       int    // preferences.preference_order
	Locked      bool   // preferences.is_locked
}
