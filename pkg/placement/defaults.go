package placement

// DefaultRules is the catalog's placement table, tuned by hand against the
// stock base photos.
var DefaultRules = []Rule{
	{Category: "BABY_LONG", Width: 180, Height: 200, X: 165, Y: 325, Label: "Baby Long"},
	{Category: "CAMISA_FEMININA", Width: 180, Height: 200, X: 165, Y: 300, Label: "Camisa Feminina"},
	{Category: "CAMISA_MANGA_LONGA", Width: 180, Height: 200, X: 165, Y: 305, Label: "Camisa Manga Longa"},
	{Category: "CAMISA_SPORT", Width: 180, Height: 200, X: 248, Y: 360, Label: "Camisa Sport"},
	{Category: "CROPPED", Width: 160, Height: 180, X: 147, Y: 346, Label: "Cropped"},
	{Category: "INFANTIL", Width: 180, Height: 200, X: 190, Y: 305, Label: "Infantil"},
	{Category: "CANECA", Width: 180, Height: 200, X: 230, Y: 365, Label: "Caneca"},
}

// Default returns a registry holding [DefaultRules].
func Default() *Registry {
	r, err := NewRegistry(DefaultRules...)
	if err != nil {
		panic("placement: invalid default rules: " + err.Error())
	}
	return r
}
