package domain

// DispenseRecord is one row of the dispensing ("surtimiento") table.
type DispenseRecord struct {
	Folio       string `json:"folio"`
	Patient     string `json:"patient"`
	Medication  string `json:"medication"`
	Dose        string `json:"dose"`
	Vials       int64  `json:"vials"`
	Opt         string `json:"opt"`
	Lot         string `json:"lot"`
	Comments    string `json:"comments"`
	Solution    string `json:"solution"`
	Volume      string `json:"volume"`
	Quantity    int64  `json:"quantity"`
	SolutionLot string `json:"solution_lot"`
	Dispensed   bool   `json:"dispensed"`
	IsNew       bool   `json:"is_new"`
	CreatedAt   string `json:"created_at"`
}
