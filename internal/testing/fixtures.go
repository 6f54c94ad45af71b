package testing

// BondUniverseFixture inserts a small universe covering every filter column.
// Rows 1-3 reproduce the three-bond boundary scenario (durations 2, 5, 8;
// metrics 0.04, 0.05, 0.06; FINANCIAL, INDUSTRIAL, UTILITY).
const BondUniverseFixture = `
INSERT INTO instruments (id, cusip, issuer, class_1, class_2, class_3, class_4, rating, dur_cell, effdate, ytm, oas, effdur, mv) VALUES
 (1, '000000AA1', 'First Bank',      'CORP', 'FINANCIAL',  'BANKING',  'SENIOR', 'A',   '1to3',  '2024-01-31', 0.04, 0.011, 2.0, 100.0),
 (2, '000000AA2', 'Steel Works',     'CORP', 'INDUSTRIAL', 'BASIC',    'SENIOR', 'BBB', '3to5',  '2024-01-31', 0.05, 0.014, 5.0, 250.0),
 (3, '000000AA3', 'Power & Light',   'CORP', 'UTILITY',    'ELECTRIC', 'SENIOR', 'A',   '7to10', '2024-01-31', 0.06, 0.017, 8.0, 150.0),
 (4, '000000AA4', 'Treasury',        'GOVT', 'SOVEREIGN',  'TSY',      'SENIOR', 'AAA', '10+',   '2024-01-31', 0.03, 0.000, 12.0, 500.0),
 (5, '000000AA5', 'Second Bank',     'CORP', 'FINANCIAL',  'BANKING',  'SUB',    'BBB', '5to7',  '2024-02-29', 0.055, 0.021, 6.0, 80.0),
 (6, '000000AA6', 'Rail Holdings',   'CORP', 'INDUSTRIAL', 'TRANSPORT','SENIOR', 'BB',  '20+',   '2024-02-29', 0.07, 0.031, 21.0, 40.0)
`
