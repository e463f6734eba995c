package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-pdf/fpdf"
	"gorm.io/gorm"

	"barpos-backend/models"
	"barpos-backend/utils"
)

type InvoiceController struct {
	DB *gorm.DB
}

func NewInvoiceController(db *gorm.DB) *InvoiceController {
	return &InvoiceController{DB: db}
}

// GetInvoiceByID
func (ic *InvoiceController) GetInvoiceByID(c *gin.Context) {
	invoiceID := c.Param("invoice_id")

	var invoice models.Invoice
	if err := ic.DB.First(&invoice, invoiceID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	items, err := invoice.Items()
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Invoice detail", gin.H{
		"invoice": invoice,
		"items":   items,
	})
}

// GetInvoicesByOrder -> all invoices for one order (one full, or one per
// settled guest).
func (ic *InvoiceController) GetInvoicesByOrder(c *gin.Context) {
	orderID := c.Param("order_id")

	var invoices []models.Invoice
	if err := ic.DB.Where("order_id = ?", orderID).
		Order("created_at asc").
		Find(&invoices).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Invoices for order", invoices)
}

// GetInvoicePDF -> printable rendering of one invoice.
func (ic *InvoiceController) GetInvoicePDF(c *gin.Context) {
	invoiceID := c.Param("invoice_id")

	var invoice models.Invoice
	if err := ic.DB.First(&invoice, invoiceID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	items, err := invoice.Items()
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	pdf := fpdf.New("P", "mm", "A5", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, "Invoice "+invoice.InvoiceNumber)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, "Table: "+invoice.TableNumber)
	pdf.Ln(6)
	if invoice.GuestName != "" {
		pdf.Cell(0, 6, "Guest: "+invoice.GuestName)
		pdf.Ln(6)
	}
	if invoice.StaffName != "" {
		pdf.Cell(0, 6, "Served by: "+invoice.StaffName)
		pdf.Ln(6)
	}
	pdf.Cell(0, 6, "Date: "+invoice.CreatedAt.Format("2006-01-02 15:04"))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(60, 6, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(15, 6, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(30, 6, "Price", "B", 0, "R", false, 0, "")
	pdf.CellFormat(30, 6, "Subtotal", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, it := range items {
		pdf.CellFormat(60, 6, it.MenuName, "", 0, "L", false, 0, "")
		pdf.CellFormat(15, 6, fmt.Sprintf("%d", it.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, utils.FormatCurrencyIDR(it.UnitPrice), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, utils.FormatCurrencyIDR(it.Subtotal), "", 1, "R", false, 0, "")
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(105, 7, "Total", "T", 0, "L", false, 0, "")
	pdf.CellFormat(30, 7, utils.FormatCurrencyIDR(invoice.Total), "T", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.Ln(4)
	pdf.Cell(0, 5, "Paid via "+invoice.Method+" ("+invoice.TransactionID+")")

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%s.pdf", invoiceID))
	if err := pdf.Output(c.Writer); err != nil {
		utils.ErrorLogger.Printf("Error writing invoice PDF: %v", err)
	}
}
