package services

import (
	"context"
	"fmt"
	"time"

	"forum/internal/core"
	"forum/internal/log"
	"forum/internal/ports"
)

const seedMembers = 50

// Seed loads the demo portal into an empty store. It writes through the
// store directly so the aggregates are set as given rather than derived,
// and does nothing when any member already exists.
func Seed(ctx context.Context, store ports.Store, logger *log.Logger) (bool, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStorage)

	existing, err := store.ListMembers(ctx)
	if err != nil {
		return false, fmt.Errorf("seed: list members: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	for i := 1; i <= seedMembers; i++ {
		m := core.Member{
			ID:             fmt.Sprintf("M-%03d", i),
			Name:           fmt.Sprintf("সদস্য %d", i),
			Email:          fmt.Sprintf("member%d@forum.com", i),
			Phone:          fmt.Sprintf("01712-0000%02d", i),
			JoiningDate:    core.NewDate(2023, 1, 1),
			MonthlySavings: core.NewMoney(2000),
			TotalSaved:     core.NewMoney(40000),
			ProfitShare:    core.NewMoney(1500),
			Avatar:         fmt.Sprintf("https://picsum.photos/seed/member%d/200", i-1),
			Role:           core.RoleMember,
		}
		if (i-1)%5 == 0 {
			m.TotalDue = core.NewMoney(2000)
		}
		if i == 1 {
			// The three demo deposits below bring M-001 back to 40000.
			m.TotalSaved = core.NewMoney(34000)
		}
		if _, err := store.UpsertMember(ctx, m); err != nil {
			return false, fmt.Errorf("seed member %s: %w", m.ID, err)
		}
	}

	created := time.Now().UTC().Truncate(time.Microsecond)
	for i, tx := range []core.Transaction{
		{MemberID: "M-001", Amount: core.NewMoney(2000), Kind: core.KindDeposit, OccurredOn: core.NewDate(2024, 5, 5), Description: "মে মাসের সঞ্চয়"},
		{MemberID: "M-001", Amount: core.NewMoney(2000), Kind: core.KindDeposit, OccurredOn: core.NewDate(2024, 4, 5), Description: "এপ্রিল মাসের সঞ্চয়"},
		{MemberID: "M-001", Amount: core.NewMoney(2000), Kind: core.KindDeposit, OccurredOn: core.NewDate(2024, 3, 5), Description: "মার্চ মাসের সঞ্চয়"},
		{MemberID: "M-001", Amount: core.NewMoney(150), Kind: core.KindProfit, OccurredOn: core.NewDate(2024, 4, 30), Description: "বিনিয়োগ লভ্যাংশ"},
	} {
		tx.ID = newTransactionID()
		tx.CreatedAt = created.Add(time.Duration(i) * time.Millisecond)
		if err := store.InsertTransaction(ctx, tx); err != nil {
			return false, fmt.Errorf("seed transaction: %w", err)
		}
	}

	for _, n := range []core.Notice{
		{ID: "n-1", Title: "বার্ষিক সাধারণ সভা ২০২৪", Content: "আগামী মাসের ১৫ তারিখে আমাদের বার্ষিক সাধারণ সভা অনুষ্ঠিত হবে। সকলের উপস্থিতি কাম্য।", Date: core.NewDate(2024, 5, 10), Author: "সাধারণ সম্পাদক", Priority: core.PriorityHigh},
		{ID: "n-2", Title: "নতুন ব্যবসায়িক বিনিয়োগ", Content: "আমরা নতুন একটি সুপারশপ ব্যবসায় বিনিয়োগ করতে যাচ্ছি। বিস্তারিত জানতে মিটিংয়ে যোগ দিন।", Date: core.NewDate(2024, 5, 8), Author: "সভাপতি", Priority: core.PriorityMedium},
		{ID: "n-3", Title: "সঞ্চয় জমা দেওয়ার শেষ তারিখ", Content: "চলতি মাসের ১০ তারিখের মধ্যে সঞ্চয় জমা দেওয়ার অনুরোধ রইল।", Date: core.NewDate(2024, 5, 1), Author: "কোষাধ্যক্ষ", Priority: core.PriorityLow},
	} {
		if err := store.CreateNotice(ctx, n); err != nil {
			return false, fmt.Errorf("seed notice %s: %w", n.ID, err)
		}
	}

	for _, p := range []core.ProjectUpdate{
		{ID: "b-1", Title: "মর্ডান সুপার শপ", Description: "আমাদের প্রধান বিনিয়োগ ক্ষেত্র। বর্তমানে এটি বেশ লাভজনক অবস্থায় আছে।", InvestmentAmount: core.NewMoney(500000), Status: core.StatusProfitable, ImageURL: "https://picsum.photos/seed/shop/400/200"},
		{ID: "b-2", Title: "ই-কমার্স প্ল্যাটফর্ম", Description: "অনলাইনে পণ্য সরবরাহের জন্য আমাদের নতুন উদ্যোগ।", InvestmentAmount: core.NewMoney(200000), Status: core.StatusRunning, ImageURL: "https://picsum.photos/seed/ecommerce/400/200"},
		{ID: "b-3", Title: "কৃষি প্রজেক্ট", Description: "অর্গানিক সবজি চাষ ও সরবরাহের লক্ষ্য নিয়ে এটি সম্প্রসারিত হচ্ছে।", InvestmentAmount: core.NewMoney(300000), Status: core.StatusExpanding, ImageURL: "https://picsum.photos/seed/agri/400/200"},
	} {
		if err := store.CreateProject(ctx, p); err != nil {
			return false, fmt.Errorf("seed project %s: %w", p.ID, err)
		}
	}

	logger.InfoContext(ctx, "Demo data seeded", log.FieldOperation, log.OpSeed, "members", seedMembers)
	return true, nil
}
