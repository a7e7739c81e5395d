package upload

import (
	"net/http"

	. "github.com/loteraa/verifier/src/utils/logger"

	"github.com/gin-gonic/gin"
)

func (self *Server) onGetDataset(c *gin.Context) {
	dataset, err := self.store.GetDataset(c, c.Param("id"))
	if err != nil {
		LOGE(c, err, http.StatusInternalServerError).Error("Failed to get dataset")
		return
	}
	if dataset == nil {
		LOGE(c, nil, http.StatusNotFound, "Dataset not found").Debug("Dataset not found")
		return
	}
	c.JSON(http.StatusOK, dataset)
}

func (self *Server) bindPage(c *gin.Context) (page Page, ok bool) {
	err := c.ShouldBindQuery(&page)
	if err != nil {
		LOGE(c, err, http.StatusBadRequest, "Invalid pagination").Debug("Failed to parse query")
		return
	}
	page.Normalize()
	return page, true
}

func (self *Server) onGetDatasets(c *gin.Context) {
	page, ok := self.bindPage(c)
	if !ok {
		return
	}

	datasets, err := self.store.ListDatasets(c, c.Param("userId"), page)
	if err != nil {
		LOGE(c, err, http.StatusInternalServerError).Error("Failed to list datasets")
		return
	}
	c.JSON(http.StatusOK, &DatasetsResponse{Datasets: datasets})
}

func (self *Server) onGetNotifications(c *gin.Context) {
	page, ok := self.bindPage(c)
	if !ok {
		return
	}

	notifications, err := self.store.ListNotifications(c, c.Param("userId"), page)
	if err != nil {
		LOGE(c, err, http.StatusInternalServerError).Error("Failed to list notifications")
		return
	}
	c.JSON(http.StatusOK, &NotificationsResponse{Notifications: notifications})
}

func (self *Server) onGetEarnings(c *gin.Context) {
	page, ok := self.bindPage(c)
	if !ok {
		return
	}

	earnings, err := self.store.ListEarnings(c, c.Param("userId"), page)
	if err != nil {
		LOGE(c, err, http.StatusInternalServerError).Error("Failed to list earnings")
		return
	}
	c.JSON(http.StatusOK, &EarningsResponse{Earnings: earnings})
}

func (self *Server) onGetProfile(c *gin.Context) {
	profile, err := self.store.GetProfile(c, c.Param("userId"))
	if err != nil {
		LOGE(c, err, http.StatusInternalServerError).Error("Failed to get profile")
		return
	}
	if profile == nil {
		LOGE(c, nil, http.StatusNotFound, "Profile not found").Debug("Profile not found")
		return
	}
	c.JSON(http.StatusOK, profile)
}
