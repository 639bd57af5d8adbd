package models

// Module identifies a functional area of the system that permissions can be
// granted on. Permissions are data, not code: the evaluator treats any string
// as a module key, these constants only enumerate what the seeded roles use.
type Module string

const (
	// Wildcard grants every action on every module (super admin).
	Wildcard Module = "*"

	ModuleSettings      Module = "settings"
	ModuleUsers         Module = "users"
	ModuleEmployees     Module = "employees"
	ModuleCategories    Module = "categories"
	ModuleProducts      Module = "products"
	ModuleInventory     Module = "inventory"
	ModuleSuppliers     Module = "suppliers"
	ModulePurchases     Module = "purchases"
	ModuleReception     Module = "reception"
	ModuleBarcodes      Module = "barcodes"
	ModulePOS           Module = "pos"
	ModuleSales         Module = "sales"
	ModuleInvoicing     Module = "invoicing"
	ModuleCashRegister  Module = "cash_register"
	ModuleCredits       Module = "credits"
	ModuleExpenses      Module = "expenses"
	ModuleFinance       Module = "finance"
	ModuleAudit         Module = "audit"
	ModuleNotifications Module = "notifications"
	ModuleReports       Module = "reports"
	ModuleAnalytics     Module = "analytics"
)

// Action is an operation that can be permitted on a module.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionExport Action = "export"
	ActionPrint  Action = "print"
)

// KnownModules lists every module of the system, in catalog order.
func KnownModules() []Module {
	return []Module{
		ModuleSettings, ModuleUsers, ModuleEmployees, ModuleCategories,
		ModuleProducts, ModuleInventory, ModuleSuppliers, ModulePurchases,
		ModuleReception, ModuleBarcodes, ModulePOS, ModuleSales,
		ModuleInvoicing, ModuleCashRegister, ModuleCredits, ModuleExpenses,
		ModuleFinance, ModuleAudit, ModuleNotifications, ModuleReports,
		ModuleAnalytics,
	}
}

// KnownActions lists every supported action.
func KnownActions() []Action {
	return []Action{ActionView, ActionCreate, ActionEdit, ActionDelete, ActionExport, ActionPrint}
}

// PermissionMap maps a module to the actions a role may perform on it.
// The Wildcard module key grants every action on every module. An absent
// module key means no permission, never an error.
type PermissionMap map[Module][]Action

// Allows reports whether the map grants action on module.
func (p PermissionMap) Allows(module Module, action Action) bool {
	if _, ok := p[Wildcard]; ok {
		return true
	}
	for _, a := range p[module] {
		if a == action {
			return true
		}
	}
	return false
}

// IsWildcard reports whether the map contains the wildcard module key.
func (p PermissionMap) IsWildcard() bool {
	_, ok := p[Wildcard]
	return ok
}

// DefaultRolePermissions holds the permission maps of the seeded roles,
// keyed by role name. The seed migration carries the same maps as JSONB.
func DefaultRolePermissions() map[string]PermissionMap {
	return map[string]PermissionMap{
		"Administrador": {
			Wildcard: KnownActions(),
		},
		"Supervisor": {
			ModuleSales:        {ActionView, ActionCreate, ActionEdit, ActionExport, ActionPrint},
			ModuleCashRegister: {ActionView, ActionExport},
			ModuleCredits:      {ActionView, ActionCreate, ActionEdit},
			ModuleInventory:    {ActionView, ActionExport},
			ModuleProducts:     {ActionView, ActionCreate, ActionEdit},
			ModuleEmployees:    {ActionView},
			ModuleReports:      {ActionView, ActionExport},
			ModuleAnalytics:    {ActionView},
		},
		"Cajero": {
			ModulePOS:          {ActionView, ActionCreate},
			ModuleSales:        {ActionView, ActionCreate, ActionPrint},
			ModuleCashRegister: {ActionView, ActionCreate},
			ModuleCredits:      {ActionView, ActionCreate},
			ModuleProducts:     {ActionView},
		},
		"Bodeguero": {
			ModuleInventory: {ActionView, ActionCreate, ActionEdit},
			ModuleProducts:  {ActionView, ActionCreate, ActionEdit},
			ModuleSuppliers: {ActionView},
			ModulePurchases: {ActionView},
			ModuleReception: {ActionView, ActionCreate, ActionEdit},
			ModuleBarcodes:  {ActionView, ActionCreate},
		},
		"Empleado": {
			ModuleSales:    {ActionView},
			ModuleProducts: {ActionView},
		},
	}
}

// ModuleAccess describes the actions available on one module.
type ModuleAccess struct {
	Module  Module   `json:"module"`
	Actions []Action `json:"actions"`
}

// AccessibleModules expands the map into a per-module action listing.
// A wildcard map expands to every known module with every known action.
func (p PermissionMap) AccessibleModules() []ModuleAccess {
	if p.IsWildcard() {
		out := make([]ModuleAccess, 0, len(KnownModules()))
		for _, m := range KnownModules() {
			out = append(out, ModuleAccess{Module: m, Actions: KnownActions()})
		}
		return out
	}

	out := make([]ModuleAccess, 0, len(p))
	for _, m := range KnownModules() {
		if actions, ok := p[m]; ok {
			out = append(out, ModuleAccess{Module: m, Actions: actions})
		}
	}
	return out
}
