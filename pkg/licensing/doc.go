// Package licensing manages seats of the Copilot license SKU: reading tenant
// seat counts and assigning or removing the license for a user addressed by
// id or by email.
//
//	svc := licensing.NewService(graph, cfg.Directory.LicenseSKU, logger, metrics)
//	counts, err := svc.GetLicenseCounts(ctx)
//	change, err := svc.Assign(ctx, "ana@contoso.com")
//
// Unknown users surface as *NotFoundError, which matches ErrUserNotFound.
package licensing
