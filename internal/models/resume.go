package models

import "encoding/json"

// Resume is the structured resume record produced and consumed by the LLM.
// The same shape is validated against resume.schema.json in the generator.
type Resume struct {
	Name           string       `json:"name" firestore:"name"`
	Headline       string       `json:"headline,omitempty" firestore:"headline,omitempty"`
	Contact        Contact      `json:"contact" firestore:"contact"`
	Summary        string       `json:"summary,omitempty" firestore:"summary,omitempty"`
	Skills         []string     `json:"skills" firestore:"skills"`
	Experience     []Experience `json:"experience" firestore:"experience"`
	Education      []Education  `json:"education" firestore:"education"`
	Projects       []Project    `json:"projects,omitempty" firestore:"projects,omitempty"`
	Certifications []string     `json:"certifications,omitempty" firestore:"certifications,omitempty"`
}

type Contact struct {
	Email    string   `json:"email,omitempty" firestore:"email,omitempty"`
	Phone    string   `json:"phone,omitempty" firestore:"phone,omitempty"`
	Location string   `json:"location,omitempty" firestore:"location,omitempty"`
	Links    []string `json:"links,omitempty" firestore:"links,omitempty"`
}

type Experience struct {
	Company   string   `json:"company" firestore:"company"`
	Title     string   `json:"title" firestore:"title"`
	Location  string   `json:"location,omitempty" firestore:"location,omitempty"`
	StartDate string   `json:"startDate,omitempty" firestore:"startDate,omitempty"`
	EndDate   string   `json:"endDate,omitempty" firestore:"endDate,omitempty"`
	Bullets   []string `json:"bullets" firestore:"bullets"`
}

type Education struct {
	Institution string `json:"institution" firestore:"institution"`
	Degree      string `json:"degree,omitempty" firestore:"degree,omitempty"`
	Field       string `json:"field,omitempty" firestore:"field,omitempty"`
	StartDate   string `json:"startDate,omitempty" firestore:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty" firestore:"endDate,omitempty"`
}

type Project struct {
	Name        string   `json:"name" firestore:"name"`
	Description string   `json:"description,omitempty" firestore:"description,omitempty"`
	Link        string   `json:"link,omitempty" firestore:"link,omitempty"`
	Bullets     []string `json:"bullets,omitempty" firestore:"bullets,omitempty"`
}

// JSON returns the resume serialized the way it is stored in text fields
// such as tailoredText and an edited resumeText.
func (r *Resume) JSON() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
