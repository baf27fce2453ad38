package services

import "github.com/girish1208dev/print-service/models"

// CalculateTotal returns the total cost for a number of photos and a delivery option.
// Every displayed or persisted total must come from here.
func CalculateTotal(photoCount int, option models.DeliveryOption) int {
	if photoCount < 0 {
		photoCount = 0
	}
	return photoCount*models.PhotoUnitPrice + option.Fee()
}
