package datasets

// TargetName is the target column: median house value in units of $100,000.
const TargetName = "PRICE"

// Description is the human readable model description served by /info.
const Description = "California Housing Price Prediction Model"

// FeatureNames is the fixed feature order used for training and prediction.
var FeatureNames = []string{
	"MedInc",
	"HouseAge",
	"AveRooms",
	"AveBedrms",
	"Population",
	"AveOccup",
	"Latitude",
	"Longitude",
}

// FeatureDescriptions documents every entry of FeatureNames.
var FeatureDescriptions = map[string]string{
	"MedInc":     "Median income in block group",
	"HouseAge":   "Median house age in block group",
	"AveRooms":   "Average number of rooms per household",
	"AveBedrms":  "Average number of bedrooms per household",
	"Population": "Block group population",
	"AveOccup":   "Average number of household members",
	"Latitude":   "Block group latitude",
	"Longitude":  "Block group longitude",
}

// ExampleInput is a valid feature vector, the first row of the dataset.
var ExampleInput = []float64{8.3252, 41.0, 6.984127, 1.023810, 322.0, 2.555556, 37.88, -122.23}
