package sqlassets

import _ "embed"

//go:embed schema/public/companies.sql
var CompaniesSQL string

//go:embed schema/template/tenant_tables.sql
var TenantTablesSQL string
