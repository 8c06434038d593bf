package models

// FirmRecord is the single record kept in the workbook. Form keys match the
// field names posted by the static form page.
type FirmRecord struct {
	FirmName string `json:"firm_name" form:"firm"`
	GSTIN    string `json:"gstin" form:"gstin"`
	Address  string `json:"address" form:"address"`
	Contact  string `json:"contact" form:"contact"`
}

// FirmField ties one FirmRecord attribute to its form key, its fixed cell
// and the label written there when the workbook is first created.
type FirmField struct {
	FormKey string
	Cell    string
	Label   string
}

// FirmFields lists the record layout in row order (column A, rows 1-4).
var FirmFields = []FirmField{
	{FormKey: "firm", Cell: "A1", Label: "Firm Name"},
	{FormKey: "gstin", Cell: "A2", Label: "GSTIN"},
	{FormKey: "address", Cell: "A3", Label: "Address"},
	{FormKey: "contact", Cell: "A4", Label: "Contact"},
}

// Values returns the record in FirmFields order.
func (r FirmRecord) Values() []string {
	return []string{r.FirmName, r.GSTIN, r.Address, r.Contact}
}

// FirmRecordFromValues is the inverse of Values. Missing trailing values are left empty.
func FirmRecordFromValues(vals []string) FirmRecord {
	get := func(i int) string {
		if i < len(vals) {
			return vals[i]
		}
		return ""
	}
	return FirmRecord{
		FirmName: get(0),
		GSTIN:    get(1),
		Address:  get(2),
		Contact:  get(3),
	}
}
