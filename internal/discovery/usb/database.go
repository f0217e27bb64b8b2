// internal/discovery/usb/database.go
package usb

import (
	"github.com/google/gousb"

	"escpos-service/internal/command"
)

// DeviceDatabase contains known receipt printer vendors and products
type DeviceDatabase struct {
	vendors map[gousb.ID]*VendorInfo
}

// VendorInfo contains vendor-specific information
type VendorInfo struct {
	Name       string
	Model      command.Model // command table for unknown products
	Confidence float64
	products   map[gousb.ID]*ProductInfo
}

// ProductInfo contains product-specific information
type ProductInfo struct {
	Product    string
	Model      command.Model
	Confidence float64
}

// NewDeviceDatabase creates and initializes the device database
func NewDeviceDatabase() *DeviceDatabase {
	db := &DeviceDatabase{
		vendors: make(map[gousb.ID]*VendorInfo),
	}
	db.initializeDatabase()
	return db
}

// initializeDatabase populates the known devices database
func (db *DeviceDatabase) initializeDatabase() {
	db.AddVendor(0x04B8, &VendorInfo{Name: "Seiko Epson Corporation", Confidence: 0.8})
	db.AddProduct(0x04B8, 0x0202, &ProductInfo{Product: "TM-T88IV", Confidence: 0.95})
	db.AddProduct(0x04B8, 0x0203, &ProductInfo{Product: "TM-T88V", Confidence: 0.95})
	db.AddProduct(0x04B8, 0x0E15, &ProductInfo{Product: "TM-T20II", Confidence: 0.95})
	db.AddProduct(0x04B8, 0x0E28, &ProductInfo{Product: "TM-T88VI", Confidence: 0.95})

	db.AddVendor(0x0519, &VendorInfo{Name: "Star Micronics", Confidence: 0.6})
	db.AddProduct(0x0519, 0x0003, &ProductInfo{Product: "TSP100", Confidence: 0.7})

	db.AddVendor(0x1504, &VendorInfo{Name: "Bixolon", Confidence: 0.8})
	db.AddProduct(0x1504, 0x0006, &ProductInfo{Product: "SRP-350plus", Confidence: 0.9})

	db.AddVendor(0x1D90, &VendorInfo{Name: "Citizen", Confidence: 0.8})
	db.AddProduct(0x1D90, 0x2060, &ProductInfo{Product: "CT-S310II", Confidence: 0.9})

	db.AddVendor(0x0DD4, &VendorInfo{Name: "Custom Engineering", Confidence: 0.7})

	// Generic controllers found in low cost 58/80 mm printers
	db.AddVendor(0x0416, &VendorInfo{Name: "Winbond (POS-58/POS-80)", Confidence: 0.6})
	db.AddProduct(0x0416, 0x5011, &ProductInfo{Product: "POS58 Printer", Confidence: 0.85})
	db.AddVendor(0x0483, &VendorInfo{Name: "STMicroelectronics", Confidence: 0.3})
	db.AddProduct(0x0483, 0x5743, &ProductInfo{Product: "POS80 Printer", Confidence: 0.8})
	db.AddVendor(0x28E9, &VendorInfo{Name: "GigaDevice", Confidence: 0.3})
	db.AddProduct(0x28E9, 0x0289, &ProductInfo{Product: "QS Thermal Printer", Model: command.ModelQSPrinter, Confidence: 0.8})
}

// IsKnownVendor reports whether the vendor builds receipt printers
func (db *DeviceDatabase) IsKnownVendor(vendorID gousb.ID) bool {
	_, exists := db.vendors[vendorID]
	return exists
}

// Identify returns the known product for an id pair. Unknown products of a
// known vendor get the vendor's defaults.
func (db *DeviceDatabase) Identify(vendorID, productID gousb.ID) (*VendorInfo, *ProductInfo, bool) {
	vendor := db.vendors[vendorID]
	if vendor == nil {
		return nil, nil, false
	}
	if product := vendor.products[productID]; product != nil {
		return vendor, product, true
	}
	return vendor, &ProductInfo{Model: vendor.Model, Confidence: vendor.Confidence}, true
}

// GetTotalProductCount returns total number of known products
func (db *DeviceDatabase) GetTotalProductCount() int {
	count := 0
	for _, vendor := range db.vendors {
		count += len(vendor.products)
	}
	return count
}

// AddVendor adds a new vendor to the database
func (db *DeviceDatabase) AddVendor(vendorID gousb.ID, info *VendorInfo) {
	if info.products == nil {
		info.products = make(map[gousb.ID]*ProductInfo)
	}
	db.vendors[vendorID] = info
}

// AddProduct adds a new product to an existing vendor
func (db *DeviceDatabase) AddProduct(vendorID, productID gousb.ID, info *ProductInfo) {
	if vendor, exists := db.vendors[vendorID]; exists {
		vendor.products[productID] = info
	}
}
