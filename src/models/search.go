package models

const SearchResultUser = "user"

// Search is the document kept in the search index for one user.
type Search struct {
	ID             string `json:"id"`
	DisplayName    string `json:"display_name"`
	Username       string `json:"username"`
	Lookup         string `json:"lookup"`
	UsernameLookup string `json:"username_lookup"`
	ResultType     string `json:"result_type"`
}
