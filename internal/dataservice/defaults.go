package dataservice

import "finboard/internal/core"

// DefaultCategories is the set created for an owner who has no categories.
var DefaultCategories = []core.Category{
	{Name: "Alimentação", Type: core.Expense, Color: "#FF6B6B", Icon: "utensils"},
	{Name: "Transporte", Type: core.Expense, Color: "#4ECDC4", Icon: "car"},
	{Name: "Moradia", Type: core.Expense, Color: "#45B7D1", Icon: "home"},
	{Name: "Saúde", Type: core.Expense, Color: "#96CEB4", Icon: "heart"},
	{Name: "Lazer", Type: core.Expense, Color: "#FFEAA7", Icon: "gamepad"},
	{Name: "Educação", Type: core.Expense, Color: "#DDA0DD", Icon: "book"},
	{Name: "Compras", Type: core.Expense, Color: "#F8BBD0", Icon: "shopping-bag"},
	{Name: "Serviços", Type: core.Expense, Color: "#FFAB91", Icon: "tool"},
	{Name: "Salário", Type: core.Income, Color: "#4CAF50", Icon: "briefcase"},
	{Name: "Freelance", Type: core.Income, Color: "#81C784", Icon: "laptop"},
	{Name: "Investimentos", Type: core.Income, Color: "#A5D6A7", Icon: "trending-up"},
	{Name: "Outros", Type: core.Income, Color: "#C8E6C9", Icon: "plus"},
	{Name: "Transferência", Type: core.Transfer, Color: "#2196F3", Icon: "arrow-right"},
	{Name: "Ações", Type: core.Investment, Color: "#3F51B5", Icon: "bar-chart"},
	{Name: "Tesouro Direto", Type: core.Investment, Color: "#5C6BC0", Icon: "landmark"},
	{Name: "CDB", Type: core.Investment, Color: "#7986CB", Icon: "piggy-bank"},
	{Name: "Fundos", Type: core.Investment, Color: "#9FA8DA", Icon: "pie-chart"},
}
