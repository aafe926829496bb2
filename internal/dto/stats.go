package dto

import repo "github.com/Additional-Code/loft/internal/repository/order"

// StatsResponse is the admin dashboard overview.
type StatsResponse struct {
	TotalOrders    int64            `json:"totalOrders"`
	OrdersByStatus map[string]int64 `json:"ordersByStatus"`
	OrdersByType   map[string]int64 `json:"ordersByType"`
	TotalRevenue   float64          `json:"totalRevenue"`
	RecentOrders   []OrderResponse  `json:"recentOrders"`
}

// NewStatsResponse maps aggregate order statistics.
func NewStatsResponse(s *repo.Stats) StatsResponse {
	byStatus := make(map[string]int64, len(s.ByStatus))
	for k, v := range s.ByStatus {
		byStatus[string(k)] = v
	}
	byType := make(map[string]int64, len(s.ByType))
	for k, v := range s.ByType {
		byType[string(k)] = v
	}
	return StatsResponse{
		TotalOrders:    s.Total,
		OrdersByStatus: byStatus,
		OrdersByType:   byType,
		TotalRevenue:   s.Revenue.InexactFloat64(),
		RecentOrders:   NewOrderResponses(s.Recent),
	}
}
