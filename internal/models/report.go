package models

type DashboardReport struct {
	TotalProperties  int                `json:"totalProperties"`
	TotalLeads       int                `json:"totalLeads"`
	TotalAnalyses    int                `json:"totalAnalyses"`
	LeadsByStatus    map[LeadStatus]int `json:"leadsByStatus"`
	LeadsBySource    map[LeadSource]int `json:"leadsBySource"`
	ConversionRate   float64            `json:"conversionRate"`
	PipelineValue    float64            `json:"pipelineValue"`
	NewLeadsLast30   int                `json:"newLeadsLast30Days"`
	UpcomingAuctions int                `json:"upcomingAuctions"`
}

type LeadReport struct {
	Leads      []*Lead            `json:"leads"`
	Pagination Pagination         `json:"pagination"`
	ByStatus   map[LeadStatus]int `json:"byStatus"`
	BySource   map[LeadSource]int `json:"bySource"`
}

type AgentPerformance struct {
	UserID         int64   `json:"userId"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	TotalLeads     int     `json:"totalLeads"`
	OpenLeads      int     `json:"openLeads"`
	Won            int     `json:"won"`
	Lost           int     `json:"lost"`
	ConversionRate float64 `json:"conversionRate"`
}

// ConversionRate is won / (won + lost) as a percentage, 0 when nothing closed.
func ConversionRate(won, lost int) float64 {
	if won+lost == 0 {
		return 0
	}
	return float64(won) / float64(won+lost) * 100
}
