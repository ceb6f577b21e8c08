// Package billsplit divides a bill equally among household members.
package billsplit

import "github.com/roomsync-dev/roomsync/internal/model"

type Share struct {
	UserID      int64  `json:"userId"`
	Name        string `json:"name"`
	AmountCents int64  `json:"amountCents"`
}

// Split divides totalCents equally among members. The remainder is handed out
// one cent at a time starting from the first member, so the shares always sum
// exactly to the total. Returns nil for an empty member list.
func Split(totalCents int64, members []model.User) []Share {
	n := int64(len(members))
	if n == 0 {
		return nil
	}

	base := totalCents / n
	rem := totalCents % n

	shares := make([]Share, 0, n)
	for i, m := range members {
		amount := base
		if int64(i) < rem {
			amount++
		}
		shares = append(shares, Share{
			UserID:      m.ID,
			Name:        m.Name,
			AmountCents: amount,
		})
	}
	return shares
}
