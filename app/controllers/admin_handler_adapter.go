package controllers

import (
	"github.com/gofiber/fiber/v2"
)

// Global controller instances
var (
	billingController *BillingController
	adminController   *AdminController
)

// Initialize sets the controllers used by the adapter functions.
func Initialize(b *BillingController, a *AdminController) {
	billingController = b
	adminController = a
}

func notConfigured(c *fiber.Ctx) error {
	return errorJSON(c, fiber.StatusServiceUnavailable, "unavailable", "Service not initialized")
}

// Adapter functions used by the router

func HandleStripeWebhook(c *fiber.Ctx) error {
	if billingController == nil {
		return notConfigured(c)
	}
	return billingController.HandleStripeWebhook(c)
}

func HandleAdminCreateRefund(c *fiber.Ctx) error {
	if billingController == nil {
		return notConfigured(c)
	}
	return billingController.HandleCreateRefund(c)
}

func HandleAdminDashboard(c *fiber.Ctx) error {
	if adminController == nil {
		return notConfigured(c)
	}
	return adminController.HandleDashboard(c)
}

func HandleAdminListJobs(c *fiber.Ctx) error {
	if adminController == nil {
		return notConfigured(c)
	}
	return adminController.HandleListJobs(c)
}

func HandleAdminRunJob(c *fiber.Ctx) error {
	if adminController == nil {
		return notConfigured(c)
	}
	return adminController.HandleRunJob(c)
}

func HandleAdminLatestReport(c *fiber.Ctx) error {
	if adminController == nil {
		return notConfigured(c)
	}
	return adminController.HandleLatestReport(c)
}

func HandleAdminWebhookOutcomes(c *fiber.Ctx) error {
	if adminController == nil {
		return notConfigured(c)
	}
	return adminController.HandleWebhookOutcomes(c)
}

func HandleAdminGetSubscriber(c *fiber.Ctx) error {
	if adminController == nil {
		return notConfigured(c)
	}
	return adminController.HandleGetSubscriber(c)
}
