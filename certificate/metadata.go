package certificate

// Attribute is one positional trait of the token metadata.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// Metadata is the token metadata referenced by the on-chain certificate.
type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Hash        string      `json:"hash"`
	Certificate string      `json:"certificate"`
	Attributes  []Attribute `json:"attributes"`
}

// Assemble combines the record, its hash and stored artifact URIs.
// Attribute order (Course, Student, Issued At) is fixed.
func Assemble(r Record, hash, imageURI, certificateURI string) Metadata {
	return Metadata{
		Name:        "Certificate: " + r.CourseTitle,
		Description: "Certificate issued to " + r.StudentName + " by " + r.IssuerName,
		Image:       imageURI,
		Hash:        hash,
		Certificate: certificateURI,
		Attributes: []Attribute{
			{TraitType: "Course", Value: r.CourseTitle},
			{TraitType: "Student", Value: r.StudentName},
			{TraitType: "Issued At", Value: r.IssuedAt},
		},
	}
}
