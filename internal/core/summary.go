package core

// Summary is the admin dashboard total across regular members.
type Summary struct {
	Members         int   `json:"members"`
	TotalSaved      Money `json:"totalSaved"`
	TotalDue        Money `json:"totalDue"`
	TotalProfit     Money `json:"totalProfitShare"`
	TotalInvestment Money `json:"totalInvestment"`
	Projects        int   `json:"projects"`
}

// Summarize totals members (admins excluded) and project investments.
func Summarize(members []Member, projects []ProjectUpdate) Summary {
	var s Summary
	for _, m := range members {
		if m.Role == RoleAdmin {
			continue
		}
		s.Members++
		s.TotalSaved = s.TotalSaved.Add(m.TotalSaved)
		s.TotalDue = s.TotalDue.Add(m.TotalDue)
		s.TotalProfit = s.TotalProfit.Add(m.ProfitShare)
	}
	for _, p := range projects {
		s.Projects++
		s.TotalInvestment = s.TotalInvestment.Add(p.InvestmentAmount)
	}
	return s
}

// DriftReport compares a member's stored aggregate with the deposit log.
type DriftReport struct {
	MemberID   string `json:"memberId"`
	TotalSaved Money  `json:"totalSaved"`
	DepositSum Money  `json:"depositSum"`
	Drift      Money  `json:"drift"`
}

func NewDriftReport(memberID string, totalSaved, depositSum Money) DriftReport {
	return DriftReport{
		MemberID:   memberID,
		TotalSaved: totalSaved,
		DepositSum: depositSum,
		Drift:      totalSaved.Sub(depositSum),
	}
}

func (d DriftReport) Consistent() bool {
	return d.Drift.Cents == 0
}
