package dto

type AdminField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	ReadOnly bool   `json:"read_only,omitempty"`
}

type AdminEntity struct {
	Name         string       `json:"name"`
	Title        string       `json:"title"`
	Fields       []AdminField `json:"fields"`
	ListDisplay  []string     `json:"list_display"`
	SearchFields []string     `json:"search_fields,omitempty"`
	Inlines      []string     `json:"inlines,omitempty"`
}

type AdminEntityList struct {
	Items []AdminEntity `json:"items"`
}
