// Package seed provides demo data for a fresh plant database.
package seed

// MaterialSpec describes a seeded raw material.
type MaterialSpec struct {
	SKU          string
	Name         string
	Unit         string
	MinimumStock string
	ReorderPoint string
}

// ProductSpec describes a seeded product and its bill of materials, keyed
// by material SKU.
type ProductSpec struct {
	SKU          string
	Name         string
	Unit         string
	MinimumStock string
	ReorderPoint string
	BOM          map[string]string
}

// Materials is the raw material catalog of the demo plant.
var Materials = []MaterialSpec{
	{"RM-OAK-BOARD", "Oak board 20mm", "m2", "20", "40"},
	{"RM-PINE-BOARD", "Pine board 18mm", "m2", "30", "60"},
	{"RM-STEEL-TUBE", "Steel tube 25mm", "m", "50", "100"},
	{"RM-SCREW-M4", "Screw M4x30", "pcs", "500", "1000"},
	{"RM-WOOD-GLUE", "Wood glue", "l", "5", "10"},
	{"RM-VARNISH", "Clear varnish", "l", "5", "10"},
	{"RM-FOAM", "Upholstery foam 40mm", "m2", "10", "20"},
	{"RM-FABRIC", "Upholstery fabric", "m2", "15", "30"},
	{"RM-GLASS", "Tempered glass 8mm", "m2", "5", "10"},
	{"RM-HINGE", "Cabinet hinge", "pcs", "100", "200"},
}

// Products is the finished goods catalog of the demo plant.
var Products = []ProductSpec{
	{
		SKU: "FG-DINING-TABLE", Name: "Oak dining table", Unit: "pcs", MinimumStock: "2", ReorderPoint: "4",
		BOM: map[string]string{"RM-OAK-BOARD": "2.4", "RM-SCREW-M4": "24", "RM-WOOD-GLUE": "0.2", "RM-VARNISH": "0.5"},
	},
	{
		SKU: "FG-CHAIR", Name: "Upholstered chair", Unit: "pcs", MinimumStock: "8", ReorderPoint: "16",
		BOM: map[string]string{"RM-OAK-BOARD": "0.6", "RM-SCREW-M4": "12", "RM-FOAM": "0.25", "RM-FABRIC": "0.4"},
	},
	{
		SKU: "FG-BOOKSHELF", Name: "Pine bookshelf", Unit: "pcs", MinimumStock: "3", ReorderPoint: "6",
		BOM: map[string]string{"RM-PINE-BOARD": "3.2", "RM-SCREW-M4": "32", "RM-VARNISH": "0.4"},
	},
	{
		SKU: "FG-DESK", Name: "Steel frame desk", Unit: "pcs", MinimumStock: "2", ReorderPoint: "5",
		BOM: map[string]string{"RM-STEEL-TUBE": "6", "RM-OAK-BOARD": "1.2", "RM-SCREW-M4": "16"},
	},
	{
		SKU: "FG-CABINET", Name: "Glass door cabinet", Unit: "pcs", MinimumStock: "1", ReorderPoint: "3",
		BOM: map[string]string{"RM-PINE-BOARD": "2.8", "RM-GLASS": "0.9", "RM-HINGE": "4", "RM-SCREW-M4": "28"},
	},
	{
		SKU: "FG-COFFEE-TABLE", Name: "Glass coffee table", Unit: "pcs", MinimumStock: "2", ReorderPoint: "4",
		BOM: map[string]string{"RM-STEEL-TUBE": "3.5", "RM-GLASS": "0.6", "RM-SCREW-M4": "8"},
	},
}

// Users maps demo user IDs to their capabilities.
var Users = map[string][]string{
	"u-admin":      {"admin"},
	"u-plant":      {"manufacture_manager"},
	"u-stores":     {"inventory_manager"},
	"u-buyer":      {"purchasing"},
	"u-finance":    {"cfo"},
	"u-people":     {"hr"},
	"u-allrounder": {"manufacture_manager", "inventory_manager"},
}
