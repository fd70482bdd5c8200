package vbzogd

// NOTE: Only the columns the pipelines read are required. Any other column in
// a file is loaded as-is and carried through the joins.

type tableSchema struct {
	File       string
	PrimaryKey []string
	Required   []string
}

type dataset struct {
	Name   string
	Tables []string
}

const (
	tableReisende       = "REISENDE"
	tableHaltestellen   = "HALTESTELLEN"
	tableTagtyp         = "TAGTYP"
	tableLinie          = "LINIE"
	tableGefaessgroesse = "GEFAESSGROESSE"

	tableFahrzeiten  = "fahrzeiten"
	tableHaltepunkt  = "haltepunkt"
	tableHaltestelle = "haltestelle"
)

var passengerDataset = dataset{
	Name:   "passengers",
	Tables: []string{tableHaltestellen, tableTagtyp, tableLinie, tableGefaessgroesse, tableReisende},
}

var travelTimeDataset = dataset{
	Name:   "travel times",
	Tables: []string{tableHaltepunkt, tableHaltestelle, tableFahrzeiten},
}

var tableSchemas = map[string]tableSchema{
	tableReisende: {
		File: "REISENDE.csv",
		Required: []string{
			"Haltestellen_Id", "Tagtyp_Id", "Linien_Id", "Linienname", "Plan_Fahrt_Id", "Einsteiger",
			"Tage_DTV", "Tage_DWV", "Tage_SA", "Tage_SO", "Tage_SA_N", "Tage_SO_N",
		},
	},
	tableHaltestellen: {
		File:       "HALTESTELLEN.csv",
		PrimaryKey: []string{"Haltestellen_Id"},
		Required:   []string{"Haltestellen_Id", "Haltestellennummer", "Haltestellenlangname"},
	},
	tableTagtyp: {
		File:       "TAGTYP.csv",
		PrimaryKey: []string{"Tagtyp_Id"},
		Required:   []string{"Tagtyp_Id"},
	},
	tableLinie: {
		File:       "LINIE.csv",
		PrimaryKey: []string{"Linien_Id"},
		Required:   []string{"Linien_Id", "Linienname", "Linienname_Fahrgastauskunft"},
	},
	tableGefaessgroesse: {
		File:       "GEFAESSGROESSE.csv",
		PrimaryKey: []string{"Plan_Fahrt_Id"},
		Required:   []string{"Plan_Fahrt_Id"},
	},

	// The file name of the fact table comes from TravelTimeConfig.FactPattern.
	tableFahrzeiten: {
		Required: []string{
			"linie",
			"halt_punkt_id_von", "halt_punkt_diva_von", "halt_id_von", "halt_diva_von", "halt_kurz_von1",
			"halt_punkt_id_nach", "halt_punkt_diva_nach", "halt_id_nach", "halt_diva_nach", "halt_kurz_nach1",
			"soll_an_nach", "ist_an_nach1", "soll_ab_nach", "ist_ab_nach",
		},
	},
	tableHaltepunkt: {
		File:       "haltepunkt.csv",
		PrimaryKey: []string{"halt_punkt_id", "halt_punkt_diva", "halt_id"},
		Required:   []string{"halt_punkt_id", "halt_punkt_diva", "halt_id", "GPS_Latitude", "GPS_Longitude"},
	},
	tableHaltestelle: {
		File:       "haltestelle.csv",
		PrimaryKey: []string{"halt_id", "halt_diva", "halt_kurz"},
		Required:   []string{"halt_id", "halt_diva", "halt_kurz", "halt_lang"},
	},
}
